package supabase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bealive/bealive-api/infra/supabase"
	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	tableConnections     = "connections"
	tableProfiles        = "profiles"
	viewProfilesWithAuth = "profiles_with_auth"
)

func (s *Store) UpsertConnection(ctx context.Context, c network.Connection) (network.Connection, error) {
	payload := map[string]any{
		"requester_id": c.RequesterID,
		"addressee_id": c.AddresseeID,
		"status":       c.Status,
	}
	resp, err := s.db(ctx).From(tableConnections).ExecuteUpsert(ctx, payload, "requester_id,addressee_id")
	if err != nil {
		return network.Connection{}, mapError(err, "connection")
	}
	row, err := firstRow[network.Connection](resp, "connection")
	if err != nil {
		return network.Connection{}, err
	}
	return row, validConnection(row)
}

func (s *Store) DeleteConnection(ctx context.Context, requesterID, addresseeID string) error {
	_, err := s.db(ctx).From(tableConnections).
		Eq("requester_id", requesterID).
		Eq("addressee_id", addresseeID).
		ExecuteDelete(ctx)
	return mapError(err, "connection")
}

func (s *Store) connectionQuery(ctx context.Context, columns string, f network.Filter) *supabase.QueryBuilder {
	q := s.db(ctx).From(tableConnections).Select(columns)
	if f.RequesterID != "" {
		q = q.Eq("requester_id", f.RequesterID)
	}
	if f.AddresseeID != "" {
		q = q.Eq("addressee_id", f.AddresseeID)
	}
	if f.Status != "" {
		q = q.Eq("status", f.Status)
	}
	return q
}

func (s *Store) ListConnections(ctx context.Context, filter network.Filter) ([]network.Connection, error) {
	resp, err := s.connectionQuery(ctx, "*", filter).Order("created_at", false).Execute(ctx)
	if err != nil {
		return nil, mapError(err, "connections")
	}
	rows, err := decodeRows[network.Connection](resp, "connection")
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := validConnection(row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (s *Store) CountConnections(ctx context.Context, filter network.Filter) (int, error) {
	resp, err := s.connectionQuery(ctx, "id", filter).Count("exact").Limit(1).Execute(ctx)
	if err != nil {
		return 0, mapError(err, "connections")
	}
	return countOf(resp, "connections")
}

func validConnection(c network.Connection) error {
	if !c.Status.Valid() {
		return apperrors.BadGateway(fmt.Errorf("unknown status %q", c.Status), fmt.Sprintf("malformed connection %d", c.ID))
	}
	return nil
}

// --- profiles ---------------------------------------------------------------

func (s *Store) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	resp, err := s.db(ctx).From(tableProfiles).Select("*").Eq("user_id", userID).Limit(1).Execute(ctx)
	if err != nil {
		return profile.Profile{}, mapError(err, "profile")
	}
	return firstRow[profile.Profile](resp, "profile")
}

func (s *Store) GetProfilesByIDs(ctx context.Context, userIDs []string) ([]profile.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	resp, err := s.db(ctx).From(tableProfiles).Select("*").In("user_id", userIDs).Execute(ctx)
	if err != nil {
		return nil, mapError(err, "profiles")
	}
	return decodeRows[profile.Profile](resp, "profile")
}

// UpsertProfile relies on merge-duplicates only touching the columns present
// in the payload.
func (s *Store) UpsertProfile(ctx context.Context, userID string, patch profile.Patch) (profile.Profile, error) {
	payload := map[string]any{"user_id": userID, "updated_at": time.Now().UTC()}
	if patch.Username != nil {
		payload["username"] = *patch.Username
	}
	if patch.FullName != nil {
		payload["full_name"] = *patch.FullName
	}
	if patch.AvatarURL != nil {
		payload["avatar_url"] = *patch.AvatarURL
	}
	resp, err := s.db(ctx).From(tableProfiles).ExecuteUpsert(ctx, payload, "user_id")
	if err != nil {
		return profile.Profile{}, mapError(err, "profile")
	}
	return firstRow[profile.Profile](resp, "profile")
}

func (s *Store) MatchContacts(ctx context.Context, query network.ContactQuery) ([]network.ContactMatch, error) {
	if query.Empty() {
		return nil, nil
	}
	var clauses []string
	if len(query.Phones) > 0 {
		phones := make([]string, 0, 2*len(query.Phones))
		for _, p := range query.Phones {
			phones = append(phones, p, "+"+p)
		}
		clauses = append(clauses, "phone_e164.in.("+strings.Join(phones, ",")+")")
	}
	for _, suffix := range query.Suffixes {
		clauses = append(clauses, "phone_e164.ilike.*"+suffix)
	}
	if len(query.Emails) > 0 {
		emails := make([]string, 0, len(query.Emails))
		for _, e := range query.Emails {
			emails = append(emails, `"`+strings.ReplaceAll(e, `"`, "")+`"`)
		}
		clauses = append(clauses, "email.in.("+strings.Join(emails, ",")+")")
	}

	resp, err := s.db(ctx).From(viewProfilesWithAuth).
		Select("user_id,username,full_name,avatar_url,phone_e164,email").
		Or(strings.Join(clauses, ",")).
		Execute(ctx)
	if err != nil {
		return nil, mapError(err, "contacts")
	}
	return decodeRows[network.ContactMatch](resp, "contact")
}
