package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/domain/post"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

func TestCommitmentUniquePerPair(t *testing.T) {
	store := New()
	ctx := context.Background()
	c, _ := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: "owner", Title: "run", AmountCents: 500})

	if _, err := store.CreateCommitment(ctx, commitment.Commitment{UserID: "u1", ChallengeID: c.ID, Side: commitment.SideFor}); err != nil {
		t.Fatalf("create commitment: %v", err)
	}
	_, err := store.CreateCommitment(ctx, commitment.Commitment{UserID: "u1", ChallengeID: c.ID, Side: commitment.SideAgainst})
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, err := store.GetCommitment(ctx, "u1", c.ID)
	if err != nil {
		t.Fatalf("get commitment: %v", err)
	}
	if got.Side != commitment.SideFor {
		t.Fatalf("expected first side to stick, got %s", got.Side)
	}
}

func TestConcurrentCommitmentInserts(t *testing.T) {
	store := New()
	ctx := context.Background()
	c, _ := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: "owner", Title: "run", AmountCents: 500})

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.CreateCommitment(ctx, commitment.Commitment{UserID: "u1", ChallengeID: c.ID, Side: commitment.SideFor}); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one insert to win, got %d", created)
	}
	if n, _ := store.CountCommitments(ctx, c.ID); n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
}

func TestStatsOnlyForCommittedChallenges(t *testing.T) {
	store := New()
	ctx := context.Background()
	a, _ := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: "o", Title: "a", AmountCents: 500})
	b, _ := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: "o", Title: "b", AmountCents: 100})

	if _, err := store.ChallengeStats(ctx, a.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found for uncommitted challenge, got %v", err)
	}

	store.CreateCommitment(ctx, commitment.Commitment{UserID: "u1", ChallengeID: a.ID, Side: commitment.SideFor})
	store.CreateCommitment(ctx, commitment.Commitment{UserID: "u2", ChallengeID: a.ID, Side: commitment.SideAgainst})
	store.CreateCommitment(ctx, commitment.Commitment{UserID: "u1", ChallengeID: b.ID, Side: commitment.SideFor})
	store.CreateCommitment(ctx, commitment.Commitment{UserID: "u2", ChallengeID: b.ID, Side: commitment.SideFor})

	stats, err := store.ChallengeStats(ctx, a.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ForAmountCents != 500 || stats.AgainstAmountCents != 500 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	top, _ := store.TopChallengeStats(ctx, 10)
	if len(top) != 2 || top[0].ChallengeID != b.ID {
		t.Fatalf("expected b first, got %+v", top)
	}
}

func TestCreatePostRollsBackNewChallenge(t *testing.T) {
	failures := 1
	store := New(WithPostInsertHook(func(post.Post) error {
		if failures > 0 {
			failures--
			return errors.New("boom")
		}
		return nil
	}))
	ctx := context.Background()

	_, err := store.CreatePost(ctx, post.CreateParams{
		AuthorID:     "author",
		NewChallenge: &post.NewChallenge{Title: "new", AmountCents: 100},
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if n, _ := store.CountChallengesByOwner(ctx, "author"); n != 0 {
		t.Fatalf("challenge should be rolled back, found %d", n)
	}

	created, err := store.CreatePost(ctx, post.CreateParams{
		AuthorID:     "author",
		NewChallenge: &post.NewChallenge{Title: "new", AmountCents: 100},
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	ch, err := store.GetChallenge(ctx, created.ChallengeID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if ch.OwnerID != "author" {
		t.Fatalf("owner should be the author, got %s", ch.OwnerID)
	}
}

func TestListPostsCursor(t *testing.T) {
	store := New()
	ctx := context.Background()
	c, _ := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: "o", Title: "a", AmountCents: 1})
	var ids []int64
	for i := 0; i < 3; i++ {
		p, err := store.CreatePost(ctx, post.CreateParams{AuthorID: "o", ChallengeID: &c.ID})
		if err != nil {
			t.Fatalf("create post: %v", err)
		}
		ids = append(ids, p.ID)
	}
	page, _ := store.Feed(ctx, nil, 2)
	if len(page) != 2 || page[0].ID != ids[2] {
		t.Fatalf("unexpected first page %+v", page)
	}
	rest, _ := store.Feed(ctx, &page[1].CreatedAt, 2)
	if len(rest) != 1 || rest[0].ID != ids[0] {
		t.Fatalf("unexpected second page %+v", rest)
	}
}

func TestConnectionsUpsertAndDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	edge := network.Connection{RequesterID: "a", AddresseeID: "b", Status: network.StatusAccepted}
	first, _ := store.UpsertConnection(ctx, edge)
	second, _ := store.UpsertConnection(ctx, edge)
	if first.ID != second.ID {
		t.Fatalf("upsert should keep one edge")
	}
	if n, _ := store.CountConnections(ctx, network.Filter{AddresseeID: "b", Status: network.StatusAccepted}); n != 1 {
		t.Fatalf("expected one follower, got %d", n)
	}
	if err := store.DeleteConnection(ctx, "a", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteConnection(ctx, "a", "b"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestMatchContacts(t *testing.T) {
	store := New()
	ctx := context.Background()
	store.SetContact("u1", "+18257359842", "")
	store.SetContact("u2", "", "Someone@Example.com")
	store.SetContact("u3", "+447700900123", "")

	matches, err := store.MatchContacts(ctx, network.ContactQuery{
		Phones:   []string{"18257359842"},
		Suffixes: []string{"8257359842"},
		Emails:   []string{"someone@example.com"},
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matches) != 2 || matches[0].UserID != "u1" || matches[1].UserID != "u2" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestUpdateChallengeRefusedOnceCommitted(t *testing.T) {
	store := New()
	ctx := context.Background()
	c, _ := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: "owner", Title: "run", AmountCents: 500})

	amount := int64(700)
	if _, err := store.UpdateChallenge(ctx, c.ID, challenge.Patch{AmountCents: &amount}); err != nil {
		t.Fatalf("open challenge update: %v", err)
	}
	if _, err := store.CreateCommitment(ctx, commitment.Commitment{UserID: "u1", ChallengeID: c.ID, Side: commitment.SideFor}); err != nil {
		t.Fatalf("create commitment: %v", err)
	}

	amount = 50
	_, err := store.UpdateChallenge(ctx, c.ID, challenge.Patch{AmountCents: &amount})
	if !apperrors.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := store.GetChallenge(ctx, c.ID)
	if got.AmountCents != 700 {
		t.Fatalf("locked challenge changed to %d", got.AmountCents)
	}
}
