// Package postgres implements the storage interfaces directly against a
// PostgreSQL database carrying the schema from internal/platform/migrations.
package postgres

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
}

var _ storage.ChallengeStore = (*Store)(nil)
var _ storage.CommitmentStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.ConnectionStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("postgres-store")
	}
	return &Store{db: sqlx.NewDb(db, "postgres"), log: log}
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNoDataFound         = "P0002"
)

// mapError converts driver failures into service errors.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(apperrors.KindNotFound, err, what+" not found")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return apperrors.Wrap(apperrors.KindConflict, err, what+" already exists")
		case pgForeignKeyViolation, pgNoDataFound:
			return apperrors.Wrap(apperrors.KindNotFound, err, what+" references a missing row")
		case pgCheckViolation:
			return apperrors.Wrap(apperrors.KindValidation, err, what+" violates a constraint")
		}
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(err, what+" query failed")
}

func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
