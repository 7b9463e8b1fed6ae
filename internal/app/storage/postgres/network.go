package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
)

const (
	connectionColumns = `id, requester_id, addressee_id, status, created_at`
	profileColumns    = `user_id, username, full_name, avatar_url, created_at, updated_at`
)

func (s *Store) UpsertConnection(ctx context.Context, c network.Connection) (network.Connection, error) {
	var out network.Connection
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO connections (requester_id, addressee_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (requester_id, addressee_id) DO UPDATE SET status = EXCLUDED.status
		RETURNING `+connectionColumns,
		c.RequesterID, c.AddresseeID, string(c.Status))
	return out, mapError(err, "connection")
}

func (s *Store) DeleteConnection(ctx context.Context, requesterID, addresseeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM connections WHERE requester_id = $1 AND addressee_id = $2`, requesterID, addresseeID)
	return mapError(err, "connection")
}

const connectionWhere = `
		WHERE ($1 = '' OR requester_id::text = $1)
		  AND ($2 = '' OR addressee_id::text = $2)
		  AND ($3 = '' OR status = $3)`

func (s *Store) ListConnections(ctx context.Context, filter network.Filter) ([]network.Connection, error) {
	var out []network.Connection
	err := s.db.SelectContext(ctx, &out, `SELECT `+connectionColumns+` FROM connections`+connectionWhere+`
		ORDER BY created_at DESC, id DESC`,
		filter.RequesterID, filter.AddresseeID, string(filter.Status))
	return out, mapError(err, "connections")
}

func (s *Store) CountConnections(ctx context.Context, filter network.Filter) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM connections`+connectionWhere,
		filter.RequesterID, filter.AddresseeID, string(filter.Status))
	return n, mapError(err, "connections")
}

func (s *Store) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	var out profile.Profile
	err := s.db.GetContext(ctx, &out, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	return out, mapError(err, "profile")
}

func (s *Store) GetProfilesByIDs(ctx context.Context, userIDs []string) ([]profile.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var out []profile.Profile
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id::text = ANY($1)`, pq.Array(userIDs))
	return out, mapError(err, "profiles")
}

func (s *Store) UpsertProfile(ctx context.Context, userID string, patch profile.Patch) (profile.Profile, error) {
	var out profile.Profile
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO profiles (user_id, username, full_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
		    username   = COALESCE($2, profiles.username),
		    full_name  = COALESCE($3, profiles.full_name),
		    avatar_url = COALESCE($4, profiles.avatar_url),
		    updated_at = now()
		RETURNING `+profileColumns,
		userID, patch.Username, patch.FullName, patch.AvatarURL)
	return out, mapError(err, "profile")
}

func (s *Store) MatchContacts(ctx context.Context, query network.ContactQuery) ([]network.ContactMatch, error) {
	if query.Empty() {
		return nil, nil
	}
	phones := make([]string, 0, 2*len(query.Phones))
	for _, p := range query.Phones {
		phones = append(phones, p, "+"+p)
	}
	var out []network.ContactMatch
	err := s.db.SelectContext(ctx, &out, `
		SELECT user_id, username, full_name, avatar_url, phone_e164, email
		FROM profiles_with_auth
		WHERE phone_e164 = ANY($1)
		   OR EXISTS (SELECT 1 FROM unnest($2::text[]) AS s(suffix) WHERE phone_e164 LIKE '%' || s.suffix)
		   OR email = ANY($3)
		ORDER BY user_id`,
		pq.Array(phones), pq.Array(query.Suffixes), pq.Array(query.Emails))
	return out, mapError(err, "contacts")
}
