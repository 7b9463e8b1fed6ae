package challenge

// Stats is the derived commitment breakdown for one challenge.
type Stats struct {
	ChallengeID        int64 `json:"challenge_id" db:"challenge_id"`
	AmountCents        int64 `json:"amount_cents" db:"amount_cents"`
	ForCount           int64 `json:"for_count" db:"for_count"`
	AgainstCount       int64 `json:"against_count" db:"against_count"`
	ForAmountCents     int64 `json:"for_amount_cents" db:"for_amount_cents"`
	AgainstAmountCents int64 `json:"against_amount_cents" db:"against_amount_cents"`
}

// ZeroStats synthesizes the breakdown of a challenge nobody has committed to.
func ZeroStats(c Challenge) Stats {
	return Stats{ChallengeID: c.ID, AmountCents: c.AmountCents}
}

// StatsFromCounts derives amounts from side counts and the challenge stake.
func StatsFromCounts(c Challenge, forCount, againstCount int64) Stats {
	return Stats{
		ChallengeID:        c.ID,
		AmountCents:        c.AmountCents,
		ForCount:           forCount,
		AgainstCount:       againstCount,
		ForAmountCents:     forCount * c.AmountCents,
		AgainstAmountCents: againstCount * c.AmountCents,
	}
}

// Detail is a challenge together with its current stats.
type Detail struct {
	Challenge
	ForCount           int64 `json:"for_count"`
	AgainstCount       int64 `json:"against_count"`
	ForAmountCents     int64 `json:"for_amount_cents"`
	AgainstAmountCents int64 `json:"against_amount_cents"`
}

// NewDetail merges a challenge and its stats.
func NewDetail(c Challenge, s Stats) Detail {
	return Detail{
		Challenge:          c,
		ForCount:           s.ForCount,
		AgainstCount:       s.AgainstCount,
		ForAmountCents:     s.ForAmountCents,
		AgainstAmountCents: s.AgainstAmountCents,
	}
}
