package network

import (
	"context"

	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

// Service manages the directed follow graph and contact discovery.
type Service struct {
	connections storage.ConnectionStore
	profiles    storage.ProfileStore
	log         *logger.Logger
}

// New constructs a network service.
func New(connections storage.ConnectionStore, profiles storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("network")
	}
	return &Service{connections: connections, profiles: profiles, log: log}
}

// Follow records an accepted edge requester -> target. Repeating it is a no-op.
func (s *Service) Follow(ctx context.Context, requesterID, targetID string) (network.Connection, error) {
	if requesterID == targetID {
		return network.Connection{}, apperrors.Validation("cannot follow yourself")
	}
	conn, err := s.connections.UpsertConnection(ctx, network.Connection{
		RequesterID: requesterID,
		AddresseeID: targetID,
		Status:      network.StatusAccepted,
	})
	if err != nil {
		return network.Connection{}, err
	}
	s.log.WithField("requester_id", requesterID).
		WithField("addressee_id", targetID).
		Info("follow recorded")
	return conn, nil
}

// Unfollow deletes the edge requester -> target. A missing edge is not an error.
func (s *Service) Unfollow(ctx context.Context, requesterID, targetID string) error {
	if requesterID == targetID {
		return apperrors.Validation("cannot unfollow yourself")
	}
	return s.connections.DeleteConnection(ctx, requesterID, targetID)
}

// ListNetwork returns the user's followers and followees. Counts are edge
// counts; users without a profile row are left out of the lists.
func (s *Service) ListNetwork(ctx context.Context, userID string) (network.Listing, error) {
	incoming, err := s.connections.ListConnections(ctx, network.Filter{AddresseeID: userID, Status: network.StatusAccepted})
	if err != nil {
		return network.Listing{}, err
	}
	outgoing, err := s.connections.ListConnections(ctx, network.Filter{RequesterID: userID, Status: network.StatusAccepted})
	if err != nil {
		return network.Listing{}, err
	}

	followerIDs := make([]string, len(incoming))
	for i, c := range incoming {
		followerIDs[i] = c.RequesterID
	}
	followingIDs := make([]string, len(outgoing))
	for i, c := range outgoing {
		followingIDs[i] = c.AddresseeID
	}

	profiles, err := s.profiles.GetProfilesByIDs(ctx, append(append([]string{}, followerIDs...), followingIDs...))
	if err != nil {
		return network.Listing{}, err
	}
	index := profile.Index(profiles)

	return network.Listing{
		Followers: pick(index, followerIDs),
		Following: pick(index, followingIDs),
		Counts:    network.Counts{Followers: len(incoming), Following: len(outgoing)},
	}, nil
}

// ImportContacts matches emails and phones against known users. Phone
// matching is exact on the normalized key or fuzzy on the last ten digits.
func (s *Service) ImportContacts(ctx context.Context, emails, phones []string) ([]network.ContactMatch, error) {
	normalized := NormalizePhones(phones)
	query := network.ContactQuery{
		Phones:   normalized,
		Suffixes: PhoneSuffixes(normalized),
		Emails:   NormalizeEmails(emails),
	}
	if query.Empty() {
		return []network.ContactMatch{}, nil
	}
	matches, err := s.profiles.MatchContacts(ctx, query)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []network.ContactMatch{}
	}
	return matches, nil
}

// ImportAndFollow imports contacts and follows every match except the
// requester. Individual follow failures are logged and skipped.
func (s *Service) ImportAndFollow(ctx context.Context, requesterID string, emails, phones []string) ([]network.ContactMatch, error) {
	matches, err := s.ImportContacts(ctx, emails, phones)
	if err != nil {
		return nil, err
	}
	followed := 0
	for _, m := range matches {
		if m.UserID == requesterID {
			continue
		}
		if _, err := s.Follow(ctx, requesterID, m.UserID); err != nil {
			s.log.WithError(err).
				WithField("requester_id", requesterID).
				WithField("addressee_id", m.UserID).
				Warn("follow from contact import failed")
			continue
		}
		followed++
	}
	s.log.WithField("requester_id", requesterID).
		WithField("matches", len(matches)).
		WithField("followed", followed).
		Info("contacts imported")
	return matches, nil
}

func pick(index map[string]profile.Profile, ids []string) []profile.Profile {
	out := make([]profile.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := index[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
