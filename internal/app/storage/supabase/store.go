// Package supabase implements the storage interfaces over the Supabase
// PostgREST gateway. Requests carry the caller's access token when one is
// present in the context so row-level security applies.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/bealive/bealive-api/infra/supabase"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

// Store implements the storage interfaces backed by Supabase.
type Store struct {
	client *supabase.Client
	log    *logger.Logger
}

var _ storage.ChallengeStore = (*Store)(nil)
var _ storage.CommitmentStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.ConnectionStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)

// New creates a Store using the provided client.
func New(client *supabase.Client, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("supabase-store")
	}
	return &Store{client: client, log: log}
}

// db returns the client scoped to the caller in ctx.
func (s *Store) db(ctx context.Context) *supabase.Client {
	return s.client.WithToken(storage.AccessToken(ctx))
}

const (
	codeForeignKeyViolation = "23503"
	codeNoDataFound         = "P0002"
	// codeChallengeLocked is raised by update_challenge_if_open; PostgREST
	// answers PTxyz codes with HTTP status xyz.
	codeChallengeLocked = "PT409"
)

// mapError converts gateway failures into service errors.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	var apiErr *supabase.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == codeChallengeLocked:
		return apperrors.Wrap(apperrors.KindConflict, err, what+" is locked by commitments")
	case supabase.IsUniqueViolation(err):
		return apperrors.Wrap(apperrors.KindConflict, err, what+" already exists")
	case supabase.IsNotFound(err), errors.As(err, &apiErr) && apiErr.Code == codeNoDataFound:
		return apperrors.Wrap(apperrors.KindNotFound, err, what+" not found")
	case errors.As(err, &apiErr) && apiErr.Code == codeForeignKeyViolation:
		return apperrors.Wrap(apperrors.KindNotFound, err, what+" references a missing row")
	case errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden):
		return apperrors.Wrap(apperrors.KindForbidden, err, what+" is not accessible")
	case errors.Is(err, supabase.ErrCircuitOpen):
		return apperrors.Wrap(apperrors.KindUnavailable, err, "persistence gateway unavailable")
	default:
		return apperrors.BadGateway(err, what+" request failed")
	}
}

func decodeRows[T any](resp *supabase.Response, what string) ([]T, error) {
	var rows []T
	if err := resp.JSON(&rows); err != nil {
		return nil, apperrors.BadGateway(err, "malformed "+what+" rows")
	}
	return rows, nil
}

func firstRow[T any](resp *supabase.Response, what string) (T, error) {
	var zero T
	rows, err := decodeRows[T](resp, what)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, apperrors.NotFound("%s not found", what)
	}
	return rows[0], nil
}

// rpcRows normalizes an RPC result that may be a single object, an array of
// rows or an object wrapping the rows under key.
func rpcRows(body []byte, key string) []string {
	result := gjson.ParseBytes(body)
	switch {
	case result.IsArray():
		rows := make([]string, 0, len(result.Array()))
		for _, item := range result.Array() {
			rows = append(rows, item.Raw)
		}
		return rows
	case result.IsObject() && key != "" && result.Get(key).IsArray():
		return rpcRows([]byte(result.Get(key).Raw), "")
	case result.IsObject():
		return []string{result.Raw}
	default:
		return nil
	}
}

func countOf(resp *supabase.Response, what string) (int, error) {
	n := resp.Count()
	if n < 0 {
		return 0, apperrors.BadGateway(fmt.Errorf("missing Content-Range"), "count "+what)
	}
	return n, nil
}

func idStrings(ids []int64) []string {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}
