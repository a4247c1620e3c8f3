package pipeline

// Stats summarizes field coverage and scoring over a finished lead set.
// Percentages and the average score are rounded half-up to whole numbers.
type Stats struct {
	EmailPct   int `json:"email_pct"`
	ProfilePct int `json:"linkedin_pct"`
	PhonePct   int `json:"phone_pct"`
	WebsitePct int `json:"website_pct"`
	AvgScore   int `json:"avg_score"`
}

// Aggregate computes coverage stats for a lead set. An empty set yields
// all-zero stats rather than a division error.
func Aggregate(leads []Lead) Stats {
	total := len(leads)
	if total == 0 {
		return Stats{}
	}

	var emails, profiles, phones, websites, scoreSum int
	for _, l := range leads {
		if l.Email != "" {
			emails++
		}
		if l.ProfileURL != "" {
			profiles++
		}
		if l.Phone != "" {
			phones++
		}
		if l.Website != "" {
			websites++
		}
		scoreSum += l.HitScore
	}

	return Stats{
		EmailPct:   pct(emails, total),
		ProfilePct: pct(profiles, total),
		PhonePct:   pct(phones, total),
		WebsitePct: pct(websites, total),
		AvgScore:   roundDiv(scoreSum, total),
	}
}

// pct returns round-half-up of 100*count/total.
func pct(count, total int) int {
	return roundDiv(100*count, total)
}

// roundDiv returns num/den rounded half-up, for non-negative num.
func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}
