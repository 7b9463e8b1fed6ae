package profiles

import (
	"context"
	"strings"

	"github.com/bealive/bealive-api/internal/app/domain/profile"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

const maxUsernameLength = 32

// Service reads and merges user profiles.
type Service struct {
	store storage.ProfileStore
	log   *logger.Logger
}

// New constructs a profile service.
func New(store storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("profiles")
	}
	return &Service{store: store, log: log}
}

// Get returns the user's profile, or not_found before the first write.
func (s *Service) Get(ctx context.Context, userID string) (profile.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// Upsert creates the profile on first write and merges supplied fields after.
func (s *Service) Upsert(ctx context.Context, userID string, patch profile.Patch) (profile.Profile, error) {
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return profile.Profile{}, apperrors.Validation("username must not be empty")
		}
		if len(username) > maxUsernameLength {
			return profile.Profile{}, apperrors.Validation("username must be at most %d characters", maxUsernameLength)
		}
		patch.Username = &username
	}
	if patch.FullName != nil {
		fullName := strings.TrimSpace(*patch.FullName)
		patch.FullName = &fullName
	}

	updated, err := s.store.UpsertProfile(ctx, userID, patch)
	if err != nil {
		if apperrors.IsConflict(err) {
			return profile.Profile{}, apperrors.Conflict("username is already taken")
		}
		return profile.Profile{}, err
	}
	s.log.WithField("user_id", userID).Info("profile saved")
	return updated, nil
}
