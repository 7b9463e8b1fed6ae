package commitments

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	"github.com/bealive/bealive-api/internal/app/storage/memory"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	owner = "a0a0a0a0-0000-4000-8000-000000000001"
	user  = "b0b0b0b0-0000-4000-8000-000000000002"
)

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) record(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func setup(t *testing.T) (*Service, *memory.Store, challenge.Challenge, *recorder) {
	t.Helper()
	store := memory.New()
	c, err := store.CreateChallenge(context.Background(), challenge.Challenge{OwnerID: owner, Title: "Run", AmountCents: 500})
	require.NoError(t, err)
	rec := &recorder{}
	svc := New(store, store, nil)
	svc.record = rec.record
	return svc, store, c, rec
}

func TestCreateFirstSideWins(t *testing.T) {
	svc, _, c, rec := setup(t)
	ctx := context.Background()

	first, created, err := svc.Create(ctx, user, c.ID, "FOR", "key-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, commitment.SideFor, first.Side)

	second, created, err := svc.Create(ctx, user, c.ID, "against", "key-2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second, "the original row is returned unchanged")

	assert.Equal(t, []string{OutcomeCreated, OutcomeExisting}, rec.outcomes)
}

func TestCreateValidation(t *testing.T) {
	svc, _, c, _ := setup(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, user, c.ID, "maybe", "")
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = svc.Create(ctx, user, c.ID+99, "for", "")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConcurrentCreatorsYieldOneRow(t *testing.T) {
	svc, store, c, _ := setup(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var createdCount atomic.Int32
	results := make([]commitment.Commitment, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := "for"
			if i%2 == 1 {
				side = "against"
			}
			got, created, err := svc.Create(ctx, user, c.ID, side, "")
			results[i], errs[i] = got, err
			if created {
				createdCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
		assert.Equal(t, results[0].ID, results[i].ID)
	}
	assert.Equal(t, int32(1), createdCount.Load())

	n, err := store.CountCommitments(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// racyStore hides the winning row from the first lookup, the way a
// concurrent insert between lookup and insert would.
type racyStore struct {
	*memory.Store
	hidden atomic.Bool
}

func (r *racyStore) GetCommitment(ctx context.Context, userID string, challengeID int64) (commitment.Commitment, error) {
	if r.hidden.CompareAndSwap(false, true) {
		return commitment.Commitment{}, apperrors.NotFound("commitment not found")
	}
	return r.Store.GetCommitment(ctx, userID, challengeID)
}

func TestCreateRecoversFromConflict(t *testing.T) {
	_, store, c, rec := setup(t)
	ctx := context.Background()
	winner, err := store.CreateCommitment(ctx, commitment.Commitment{UserID: user, ChallengeID: c.ID, Side: commitment.SideAgainst})
	require.NoError(t, err)

	racy := &racyStore{Store: store}
	svc := New(store, racy, nil)
	svc.record = rec.record

	got, created, err := svc.Create(ctx, user, c.ID, "for", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner, got)
	assert.Equal(t, []string{OutcomeRace}, rec.outcomes)
}

// conflictStore always reports a conflict and never finds the row.
type conflictStore struct {
	*memory.Store
	lookups atomic.Int32
}

func (c *conflictStore) GetCommitment(context.Context, string, int64) (commitment.Commitment, error) {
	c.lookups.Add(1)
	return commitment.Commitment{}, apperrors.NotFound("commitment not found")
}

func (c *conflictStore) CreateCommitment(context.Context, commitment.Commitment) (commitment.Commitment, error) {
	return commitment.Commitment{}, apperrors.Conflict("commitment already exists")
}

func TestCreateBoundedAttempts(t *testing.T) {
	_, store, c, _ := setup(t)
	stuck := &conflictStore{Store: store}
	svc := New(store, stuck, nil)
	svc.record = func(string) {}

	_, _, err := svc.Create(context.Background(), user, c.ID, "for", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Equal(t, int32(maxAttempts), stuck.lookups.Load())
}

func TestCreatePropagatesStoreFailure(t *testing.T) {
	_, store, c, _ := setup(t)
	boom := errors.New("gateway down")
	svc := New(store, &failingStore{Store: store, err: boom}, nil)
	svc.record = func(string) {}

	_, _, err := svc.Create(context.Background(), user, c.ID, "for", "")
	assert.ErrorIs(t, err, boom)
}

type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) GetCommitment(context.Context, string, int64) (commitment.Commitment, error) {
	return commitment.Commitment{}, f.err
}

func TestListings(t *testing.T) {
	svc, store, c, _ := setup(t)
	ctx := context.Background()
	other, err := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: owner, Title: "Swim", AmountCents: 100})
	require.NoError(t, err)

	_, _, err = svc.Create(ctx, user, c.ID, "for", "")
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, owner, c.ID, "against", "")
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, user, other.ID, "against", "")
	require.NoError(t, err)

	list, err := svc.ListForChallenge(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, owner, list[0].UserID, "newest first")

	mine, err := svc.ListMine(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, other.ID, mine[0].ChallengeID)

	got, err := svc.GetMine(ctx, user, other.ID)
	require.NoError(t, err)
	assert.Equal(t, commitment.SideAgainst, got.Side)

	_, err = svc.GetMine(ctx, owner, other.ID)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.ListForChallenge(ctx, other.ID+50, 0)
	assert.True(t, apperrors.IsNotFound(err))
}
