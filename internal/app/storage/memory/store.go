package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/domain/post"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	lastTS time.Time

	challenges  map[int64]challenge.Challenge
	commitments map[int64]commitment.Commitment
	pairs       map[pairKey]int64
	posts       map[int64]post.Post
	connections map[edgeKey]network.Connection
	profiles    map[string]profile.Profile
	contacts    map[string]contactInfo

	beforePostInsert func(post.Post) error
}

// Option configures a Store.
type Option func(*Store)

// WithPostInsertHook installs hook, consulted with the store locked before
// every post insert. A non-nil error aborts the insert and removes the
// challenge created alongside it.
func WithPostInsertHook(hook func(post.Post) error) Option {
	return func(s *Store) { s.beforePostInsert = hook }
}

type pairKey struct {
	userID      string
	challengeID int64
}

type edgeKey struct {
	requester string
	addressee string
}

type contactInfo struct {
	phone string
	email string
}

var _ storage.ChallengeStore = (*Store)(nil)
var _ storage.CommitmentStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.ConnectionStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		nextID:      1,
		challenges:  make(map[int64]challenge.Challenge),
		commitments: make(map[int64]commitment.Commitment),
		pairs:       make(map[pairKey]int64),
		posts:       make(map[int64]post.Post),
		connections: make(map[edgeKey]network.Connection),
		profiles:    make(map[string]profile.Profile),
		contacts:    make(map[string]contactInfo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetContact records the phone and email of an identity so contact imports
// can match it. Phones are stored as given.
func (s *Store) SetContact(userID, phoneE164, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[userID] = contactInfo{phone: phoneE164, email: strings.ToLower(strings.TrimSpace(email))}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// nowLocked returns a strictly increasing timestamp so created_at orders rows
// the same way ids do.
func (s *Store) nowLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = now
	return now
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

// --- ChallengeStore ---------------------------------------------------------

func (s *Store) CreateChallenge(_ context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createChallengeLocked(c), nil
}

func (s *Store) createChallengeLocked(c challenge.Challenge) challenge.Challenge {
	c.ID = s.nextIDLocked()
	c.CreatedAt = s.nowLocked()
	s.challenges[c.ID] = c
	return c
}

func (s *Store) GetChallenge(_ context.Context, id int64) (challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[id]
	if !ok {
		return challenge.Challenge{}, apperrors.NotFound("challenge %d not found", id)
	}
	return c, nil
}

func (s *Store) UpdateChallenge(_ context.Context, id int64, patch challenge.Patch) (challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return challenge.Challenge{}, apperrors.NotFound("challenge %d not found", id)
	}
	if s.hasCommitmentsLocked(id) {
		return challenge.Challenge{}, apperrors.Conflict("challenge %d is locked", id)
	}
	c = patch.Apply(c)
	s.challenges[id] = c
	return c, nil
}

func (s *Store) hasCommitmentsLocked(challengeID int64) bool {
	for _, c := range s.commitments {
		if c.ChallengeID == challengeID {
			return true
		}
	}
	return false
}

func (s *Store) ListChallenges(_ context.Context, filter challenge.Filter) ([]challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []challenge.Challenge
	for _, c := range s.challenges {
		if filter.OwnerID != "" && c.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Before != nil && !c.CreatedAt.Before(*filter.Before) {
			continue
		}
		out = append(out, c)
	}
	sortChallenges(out)
	return truncate(out, clampLimit(filter.Limit, 20)), nil
}

func (s *Store) GetChallengesByIDs(_ context.Context, ids []int64) ([]challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]challenge.Challenge, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c, ok := s.challenges[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) SearchChallenges(_ context.Context, query string, limit int) ([]challenge.Challenge, error) {
	needle := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []challenge.Challenge
	for _, c := range s.challenges {
		if strings.Contains(strings.ToLower(c.Title), needle) ||
			(c.Description != nil && strings.Contains(strings.ToLower(*c.Description), needle)) {
			out = append(out, c)
		}
	}
	sortChallenges(out)
	return truncate(out, clampLimit(limit, 20)), nil
}

func (s *Store) CountChallengesByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.challenges {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// --- CommitmentStore --------------------------------------------------------

func (s *Store) CreateCommitment(_ context.Context, c commitment.Commitment) (commitment.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[c.ChallengeID]; !ok {
		return commitment.Commitment{}, apperrors.NotFound("challenge %d not found", c.ChallengeID)
	}
	key := pairKey{userID: c.UserID, challengeID: c.ChallengeID}
	if _, exists := s.pairs[key]; exists {
		return commitment.Commitment{}, apperrors.Conflict("commitment already exists")
	}
	c.ID = s.nextIDLocked()
	c.CreatedAt = s.nowLocked()
	s.commitments[c.ID] = c
	s.pairs[key] = c.ID
	return c, nil
}

func (s *Store) GetCommitment(_ context.Context, userID string, challengeID int64) (commitment.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairs[pairKey{userID: userID, challengeID: challengeID}]
	if !ok {
		return commitment.Commitment{}, apperrors.NotFound("commitment not found")
	}
	return s.commitments[id], nil
}

func (s *Store) ListCommitmentsByChallenge(_ context.Context, challengeID int64, limit int) ([]commitment.Commitment, error) {
	return s.listCommitments(func(c commitment.Commitment) bool { return c.ChallengeID == challengeID }, clampLimit(limit, 50)), nil
}

func (s *Store) ListCommitmentsByUser(_ context.Context, userID string, limit int) ([]commitment.Commitment, error) {
	return s.listCommitments(func(c commitment.Commitment) bool { return c.UserID == userID }, limit), nil
}

func (s *Store) listCommitments(match func(commitment.Commitment) bool, limit int) []commitment.Commitment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []commitment.Commitment
	for _, c := range s.commitments {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 {
		return truncate(out, limit)
	}
	return out
}

func (s *Store) CountCommitments(_ context.Context, challengeID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.commitments {
		if c.ChallengeID == challengeID {
			n++
		}
	}
	return n, nil
}

// --- StatsStore -------------------------------------------------------------

func (s *Store) ChallengeStats(_ context.Context, challengeID int64) (challenge.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[challengeID]
	if !ok {
		return challenge.Stats{}, apperrors.NotFound("challenge %d not found", challengeID)
	}
	stats, ok := s.statsLocked()[challengeID]
	if !ok {
		return challenge.Stats{}, apperrors.NotFound("no stats for challenge %d", c.ID)
	}
	return stats, nil
}

func (s *Store) TopChallengeStats(_ context.Context, limit int) ([]challenge.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.statsLocked()
	out := make([]challenge.Stats, 0, len(all))
	for _, st := range all {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ForCount != b.ForCount {
			return a.ForCount > b.ForCount
		}
		if a.AgainstCount != b.AgainstCount {
			return a.AgainstCount > b.AgainstCount
		}
		return a.ChallengeID > b.ChallengeID
	})
	return truncate(out, clampLimit(limit, 10)), nil
}

// statsLocked mirrors the challenge_stats view: one row per challenge with at
// least one commitment.
func (s *Store) statsLocked() map[int64]challenge.Stats {
	counts := make(map[int64][2]int64)
	for _, c := range s.commitments {
		n := counts[c.ChallengeID]
		if c.Side == commitment.SideFor {
			n[0]++
		} else {
			n[1]++
		}
		counts[c.ChallengeID] = n
	}
	out := make(map[int64]challenge.Stats, len(counts))
	for id, n := range counts {
		if c, ok := s.challenges[id]; ok {
			out[id] = challenge.StatsFromCounts(c, n[0], n[1])
		}
	}
	return out
}

// --- PostStore --------------------------------------------------------------

func (s *Store) CreatePost(_ context.Context, params post.CreateParams) (post.WithCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var challengeID int64
	var created *challenge.Challenge
	switch {
	case params.ChallengeID != nil:
		if _, ok := s.challenges[*params.ChallengeID]; !ok {
			return post.WithCounts{}, apperrors.NotFound("challenge %d not found", *params.ChallengeID)
		}
		challengeID = *params.ChallengeID
	case params.NewChallenge != nil:
		nc := params.NewChallenge
		c := s.createChallengeLocked(challenge.Challenge{
			OwnerID:     params.AuthorID,
			Title:       nc.Title,
			Description: nc.Description,
			AmountCents: nc.AmountCents,
			StartsAt:    nc.StartsAt,
			EndsAt:      nc.EndsAt,
		})
		created = &c
		challengeID = c.ID
	default:
		return post.WithCounts{}, apperrors.Validation("challenge_id or new_challenge is required")
	}

	p := post.Post{
		ChallengeID: challengeID,
		AuthorID:    params.AuthorID,
		Caption:     params.Caption,
	}
	if s.beforePostInsert != nil {
		if err := s.beforePostInsert(p); err != nil {
			if created != nil {
				delete(s.challenges, created.ID)
			}
			return post.WithCounts{}, err
		}
	}
	p.ID = s.nextIDLocked()
	p.CreatedAt = s.nowLocked()
	s.posts[p.ID] = p
	return s.withCountsLocked(p, s.statsLocked()), nil
}

func (s *Store) GetPost(_ context.Context, id int64) (post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return post.Post{}, apperrors.NotFound("post %d not found", id)
	}
	return p, nil
}

func (s *Store) GetPostWithCounts(_ context.Context, id int64) (post.WithCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return post.WithCounts{}, apperrors.NotFound("post %d not found", id)
	}
	return s.withCountsLocked(p, s.statsLocked()), nil
}

func (s *Store) ListPosts(_ context.Context, filter post.Filter) ([]post.WithCounts, error) {
	return s.listPosts(func(p post.Post) bool {
		if filter.ChallengeID != nil && p.ChallengeID != *filter.ChallengeID {
			return false
		}
		return filter.AuthorID == "" || p.AuthorID == filter.AuthorID
	}, filter.Before, clampLimit(filter.Limit, 20)), nil
}

func (s *Store) Feed(_ context.Context, before *time.Time, limit int) ([]post.WithCounts, error) {
	return s.listPosts(func(post.Post) bool { return true }, before, clampLimit(limit, 20)), nil
}

func (s *Store) listPosts(match func(post.Post) bool, before *time.Time, limit int) []post.WithCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var posts []post.Post
	for _, p := range s.posts {
		if before != nil && !p.CreatedAt.Before(*before) {
			continue
		}
		if match(p) {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	posts = truncate(posts, limit)
	stats := s.statsLocked()
	out := make([]post.WithCounts, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.withCountsLocked(p, stats))
	}
	return out
}

func (s *Store) withCountsLocked(p post.Post, stats map[int64]challenge.Stats) post.WithCounts {
	st, ok := stats[p.ChallengeID]
	if !ok {
		st = challenge.Stats{ChallengeID: p.ChallengeID}
	}
	return post.NewWithCounts(p, st)
}

func (s *Store) UpdatePostMedia(_ context.Context, id int64, mediaURL string) (post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return post.Post{}, apperrors.NotFound("post %d not found", id)
	}
	p.MediaURL = &mediaURL
	s.posts[id] = p
	return p, nil
}

func (s *Store) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return apperrors.NotFound("post %d not found", id)
	}
	delete(s.posts, id)
	return nil
}

func (s *Store) CountPostsByAuthor(_ context.Context, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

// --- ConnectionStore --------------------------------------------------------

func (s *Store) UpsertConnection(_ context.Context, c network.Connection) (network.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey{requester: c.RequesterID, addressee: c.AddresseeID}
	if existing, ok := s.connections[key]; ok {
		existing.Status = c.Status
		s.connections[key] = existing
		return existing, nil
	}
	c.ID = s.nextIDLocked()
	c.CreatedAt = s.nowLocked()
	s.connections[key] = c
	return c, nil
}

func (s *Store) DeleteConnection(_ context.Context, requesterID, addresseeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, edgeKey{requester: requesterID, addressee: addresseeID})
	return nil
}

func (s *Store) ListConnections(_ context.Context, filter network.Filter) ([]network.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []network.Connection
	for _, c := range s.connections {
		if matchEdge(c, filter) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) CountConnections(_ context.Context, filter network.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.connections {
		if matchEdge(c, filter) {
			n++
		}
	}
	return n, nil
}

func matchEdge(c network.Connection, f network.Filter) bool {
	if f.RequesterID != "" && c.RequesterID != f.RequesterID {
		return false
	}
	if f.AddresseeID != "" && c.AddresseeID != f.AddresseeID {
		return false
	}
	return f.Status == "" || c.Status == f.Status
}

// --- ProfileStore -----------------------------------------------------------

func (s *Store) GetProfile(_ context.Context, userID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, apperrors.NotFound("profile not found")
	}
	return p, nil
}

func (s *Store) GetProfilesByIDs(_ context.Context, userIDs []string) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]profile.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) UpsertProfile(_ context.Context, userID string, patch profile.Patch) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowLocked()
	p, ok := s.profiles[userID]
	if !ok {
		p = profile.Profile{UserID: userID, CreatedAt: now}
	}
	p = patch.Apply(p)
	p.UpdatedAt = now
	s.profiles[userID] = p
	return p, nil
}

func (s *Store) MatchContacts(_ context.Context, q network.ContactQuery) ([]network.ContactMatch, error) {
	phones := toSet(q.Phones)
	emails := toSet(q.Emails)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []network.ContactMatch
	for userID, info := range s.contacts {
		if !contactMatches(info, phones, q.Suffixes, emails) {
			continue
		}
		m := network.ContactMatch{UserID: userID}
		if p, ok := s.profiles[userID]; ok {
			m.Username, m.FullName, m.AvatarURL = p.Username, p.FullName, p.AvatarURL
		}
		if info.phone != "" {
			phone := info.phone
			m.PhoneE164 = &phone
		}
		if info.email != "" {
			email := info.email
			m.Email = &email
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func contactMatches(info contactInfo, phones map[string]struct{}, suffixes []string, emails map[string]struct{}) bool {
	if info.phone != "" {
		digits := strings.TrimPrefix(info.phone, "+")
		if _, ok := phones[digits]; ok {
			return true
		}
		if _, ok := phones[info.phone]; ok {
			return true
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(info.phone, suffix) {
				return true
			}
		}
	}
	if info.email != "" {
		if _, ok := emails[info.email]; ok {
			return true
		}
	}
	return false
}

// --- helpers ----------------------------------------------------------------

func sortChallenges(items []challenge.Challenge) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
