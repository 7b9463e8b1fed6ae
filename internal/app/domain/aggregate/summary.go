package aggregate

// UserSummary is the recomputed activity summary of one user.
type UserSummary struct {
	UserID                  string `json:"user_id"`
	Followers               int    `json:"followers"`
	Following               int    `json:"following"`
	ChallengesCount         int    `json:"challenges_count"`
	PostsCount              int    `json:"posts_count"`
	CommitmentsForCount     int    `json:"commitments_for_count"`
	CommitmentsAgainstCount int    `json:"commitments_against_count"`
	ForAmountCents          int64  `json:"for_amount_cents"`
	AgainstAmountCents      int64  `json:"against_amount_cents"`
}
