package pipeline

import (
	"sync"
	"time"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

// Request is the validated input that creates a job.
type Request struct {
	URL      string `json:"url" validate:"required,url"`
	MaxLeads int    `json:"max_leads" validate:"omitempty,min=10,max=5000"`
	SkipAI   bool   `json:"skip_gpt"`
}

// Job holds the full state of one pipeline run. The runner is the only
// writer; readers take consistent copies through Snapshot.
type Job struct {
	mu sync.RWMutex

	id          string
	request     Request
	status      JobStatus
	leads       []Lead
	stats       *Stats
	errMessage  string
	createdAt   time.Time
	completedAt *time.Time
}

// NewJob constructs a running job for the given request.
func NewJob(id string, req Request) *Job {
	return &Job{
		id:        id,
		request:   req,
		status:    StatusRunning,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Request returns the originating request.
func (j *Job) Request() Request {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.request
}

// Status returns the current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// SetLeads installs the scraped lead set. Called once by the scrape stage.
func (j *Job) SetLeads(leads []Lead) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.leads = leads
}

// LeadCount returns the number of leads currently attached to the job.
func (j *Job) LeadCount() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.leads)
}

// SetWebEnrichment records web-discovery results for lead i. Existing
// values are kept; enrichment is additive only.
func (j *Job) SetWebEnrichment(i int, profileURL, website, excerpt string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.leads) {
		return
	}
	l := &j.leads[i]
	if l.ProfileURL == "" {
		l.ProfileURL = profileURL
	}
	if l.Website == "" {
		l.Website = website
	}
	if l.WebsiteExcerpt == "" {
		l.WebsiteExcerpt = excerpt
	}
}

// SetContact records contact-discovery results for lead i without
// overwriting values found earlier.
func (j *Job) SetContact(i int, email, phone string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.leads) {
		return
	}
	l := &j.leads[i]
	if l.Email == "" {
		l.Email = email
	}
	if l.Phone == "" {
		l.Phone = phone
	}
}

// SetProfileText records the scraped profile page text for lead i,
// keeping any text recorded earlier.
func (j *Job) SetProfileText(i int, text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.leads) {
		return
	}
	if j.leads[i].ProfileText == "" {
		j.leads[i].ProfileText = text
	}
}

// SetScore records the hit score and classification for lead i.
func (j *Job) SetScore(i, score int, hit bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.leads) {
		return
	}
	j.leads[i].HitScore = score
	j.leads[i].IsHit = hit
}

// SetAIInsight records AI-generated fields for lead i.
func (j *Job) SetAIInsight(i int, summary, angle string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.leads) {
		return
	}
	j.leads[i].ActivitySummary = summary
	j.leads[i].ConversionAngle = angle
}

// Leads returns a copy of the current lead slice.
func (j *Job) Leads() []Lead {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Lead, len(j.leads))
	copy(out, j.leads)
	return out
}

// Complete moves the job to done and attaches the aggregated stats.
// It is a no-op if the job already reached a terminal state.
func (j *Job) Complete(stats Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return
	}
	now := time.Now().UTC()
	j.status = StatusDone
	j.stats = &stats
	j.completedAt = &now
}

// Fail moves the job to error with the given message. It is a no-op if the
// job already reached a terminal state.
func (j *Job) Fail(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return
	}
	now := time.Now().UTC()
	j.status = StatusError
	j.errMessage = message
	j.completedAt = &now
}

// JobView is a consistent point-in-time projection of a job, safe to
// serialize while the runner keeps mutating the job.
type JobView struct {
	JobID       string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	URL         string     `json:"url"`
	MaxLeads    int        `json:"max_leads"`
	TotalLeads  int        `json:"total_leads"`
	HitLeads    int        `json:"hit_leads"`
	NoHitLeads  int        `json:"nohit_leads"`
	Stats       *Stats     `json:"stats,omitempty"`
	Leads       []Lead     `json:"leads"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Snapshot returns a deep copy of the job state.
func (j *Job) Snapshot() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()

	leads := make([]Lead, len(j.leads))
	copy(leads, j.leads)

	hits := 0
	for _, l := range leads {
		if l.IsHit {
			hits++
		}
	}

	view := JobView{
		JobID:      j.id,
		Status:     j.status,
		URL:        j.request.URL,
		MaxLeads:   j.request.MaxLeads,
		TotalLeads: len(leads),
		HitLeads:   hits,
		NoHitLeads: len(leads) - hits,
		Leads:      leads,
		Error:      j.errMessage,
		CreatedAt:  j.createdAt,
	}
	if j.stats != nil {
		s := *j.stats
		view.Stats = &s
	}
	if j.completedAt != nil {
		t := *j.completedAt
		view.CompletedAt = &t
	}
	return view
}
