package pipeline

// Hit score weights. A lead earns points for each contact channel that was
// discovered; the total determines whether the lead counts as a hit.
const (
	ScoreEmail   = 40
	ScoreProfile = 30
	ScorePhone   = 20
	ScoreWebsite = 10

	// DefaultHitThreshold is the minimum score for a lead to classify as
	// a hit when no threshold is configured.
	DefaultHitThreshold = 50
)

// ComputeScore returns the hit score for a lead based on which contact
// fields are present.
func ComputeScore(l Lead) int {
	score := 0
	if l.Email != "" {
		score += ScoreEmail
	}
	if l.ProfileURL != "" {
		score += ScoreProfile
	}
	if l.Phone != "" {
		score += ScorePhone
	}
	if l.Website != "" {
		score += ScoreWebsite
	}
	return score
}

// Classify scores the lead and reports whether it meets the hit threshold.
func Classify(l Lead, threshold int) (score int, hit bool) {
	if threshold <= 0 {
		threshold = DefaultHitThreshold
	}
	score = ComputeScore(l)
	return score, score >= threshold
}
