package storage

import (
	"context"
	"time"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/domain/post"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
)

// Implementations report missing rows with a not_found service error and
// uniqueness violations with a conflict service error (see internal/errors).

// ChallengeStore persists challenges.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error)
	GetChallenge(ctx context.Context, id int64) (challenge.Challenge, error)
	// UpdateChallenge applies patch only while the challenge has no
	// commitments, checked atomically with the write. It returns conflict
	// when the challenge is locked.
	UpdateChallenge(ctx context.Context, id int64, patch challenge.Patch) (challenge.Challenge, error)
	ListChallenges(ctx context.Context, filter challenge.Filter) ([]challenge.Challenge, error)
	GetChallengesByIDs(ctx context.Context, ids []int64) ([]challenge.Challenge, error)
	SearchChallenges(ctx context.Context, query string, limit int) ([]challenge.Challenge, error)
	CountChallengesByOwner(ctx context.Context, ownerID string) (int, error)
}

// CommitmentStore persists commitments. Rows are never updated or deleted.
type CommitmentStore interface {
	CreateCommitment(ctx context.Context, c commitment.Commitment) (commitment.Commitment, error)
	GetCommitment(ctx context.Context, userID string, challengeID int64) (commitment.Commitment, error)
	ListCommitmentsByChallenge(ctx context.Context, challengeID int64, limit int) ([]commitment.Commitment, error)
	// ListCommitmentsByUser returns every commitment of the user when limit <= 0.
	ListCommitmentsByUser(ctx context.Context, userID string, limit int) ([]commitment.Commitment, error)
	CountCommitments(ctx context.Context, challengeID int64) (int, error)
}

// StatsStore reads derived commitment breakdowns.
type StatsStore interface {
	// ChallengeStats returns not_found when the challenge has no commitments.
	ChallengeStats(ctx context.Context, challengeID int64) (challenge.Stats, error)
	// TopChallengeStats returns stats of challenges with at least one
	// commitment ordered by for_count, against_count and challenge id, all desc.
	TopChallengeStats(ctx context.Context, limit int) ([]challenge.Stats, error)
}

// PostStore persists posts.
type PostStore interface {
	// CreatePost inserts the post and, when params.NewChallenge is set, its
	// challenge in one atomic unit.
	CreatePost(ctx context.Context, params post.CreateParams) (post.WithCounts, error)
	GetPost(ctx context.Context, id int64) (post.Post, error)
	GetPostWithCounts(ctx context.Context, id int64) (post.WithCounts, error)
	ListPosts(ctx context.Context, filter post.Filter) ([]post.WithCounts, error)
	Feed(ctx context.Context, before *time.Time, limit int) ([]post.WithCounts, error)
	UpdatePostMedia(ctx context.Context, id int64, mediaURL string) (post.Post, error)
	DeletePost(ctx context.Context, id int64) error
	CountPostsByAuthor(ctx context.Context, authorID string) (int, error)
}

// ConnectionStore persists the directed follow graph.
type ConnectionStore interface {
	// UpsertConnection inserts or updates the edge keyed by requester and addressee.
	UpsertConnection(ctx context.Context, c network.Connection) (network.Connection, error)
	// DeleteConnection removes the edge; a missing edge is not an error.
	DeleteConnection(ctx context.Context, requesterID, addresseeID string) error
	ListConnections(ctx context.Context, filter network.Filter) ([]network.Connection, error)
	CountConnections(ctx context.Context, filter network.Filter) (int, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (profile.Profile, error)
	GetProfilesByIDs(ctx context.Context, userIDs []string) ([]profile.Profile, error)
	// UpsertProfile creates the profile on first write and merges the patch otherwise.
	UpsertProfile(ctx context.Context, userID string, patch profile.Patch) (profile.Profile, error)
	MatchContacts(ctx context.Context, query network.ContactQuery) ([]network.ContactMatch, error)
}

// SignedUpload is a short-lived grant to write one object.
type SignedUpload struct {
	URL   string
	Token string
	Path  string
}

// ObjectStore writes media objects.
type ObjectStore interface {
	CreateSignedUpload(ctx context.Context, bucket, path string) (SignedUpload, error)
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
}
