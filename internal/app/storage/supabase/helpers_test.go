package supabase

import (
	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
)

func commitmentFor(userID string, challengeID int64) commitment.Commitment {
	return commitment.Commitment{UserID: userID, ChallengeID: challengeID, Side: commitment.SideFor}
}

func challengeFilter(limit int) challenge.Filter {
	return challenge.Filter{Limit: limit}
}
