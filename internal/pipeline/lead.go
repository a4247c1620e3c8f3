package pipeline

// Lead is the unit record flowing through every stage. Identity fields are
// set once by the scrape stage; later stages only add enrichment, never
// overwrite a value that is already present.
type Lead struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	JobTitle  string `json:"job_title"`
	Location  string `json:"location"`

	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ProfileURL string `json:"linkedin_url,omitempty"`
	Website    string `json:"website,omitempty"`

	HitScore int  `json:"hit_score"`
	IsHit    bool `json:"is_hit"`

	ActivitySummary string `json:"activity_summary,omitempty"`
	ConversionAngle string `json:"conversion_angle,omitempty"`

	// WebsiteExcerpt and ProfileText are transient context for the AI
	// stage and are never serialized to clients or exports.
	WebsiteExcerpt string `json:"-"`
	ProfileText    string `json:"-"`
}

// FullName joins the identity name fields for search queries and logs.
func (l Lead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	default:
		return l.FirstName + " " + l.LastName
	}
}
