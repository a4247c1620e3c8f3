package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RegistryConfig tunes job creation and retention.
type RegistryConfig struct {
	Runner RunnerConfig

	// MaxLeadsDefault is applied when a request omits max_leads.
	MaxLeadsDefault int
	// MaxLeadsLimit is the hard upper bound a request may ask for.
	MaxLeadsLimit int
	// EventLogCap bounds each job's replayable event history.
	EventLogCap int
	// RetentionTTL evicts terminal jobs this long after completion.
	// Zero disables eviction.
	RetentionTTL time.Duration
}

func (c *RegistryConfig) applyDefaults() {
	if c.MaxLeadsDefault <= 0 {
		c.MaxLeadsDefault = 500
	}
	if c.MaxLeadsLimit <= 0 {
		c.MaxLeadsLimit = 5000
	}
	if c.EventLogCap <= 0 {
		c.EventLogCap = DefaultEventLogCap
	}
}

// Registry owns every job and its event stream. It validates requests,
// launches runners, serves snapshots and subscriptions, and evicts
// long-finished jobs.
type Registry struct {
	providers Providers
	cfg       RegistryConfig
	logger    *slog.Logger

	mu      sync.RWMutex
	jobs    map[string]*Job
	streams map[string]*Broadcaster
}

// NewRegistry creates a registry with the given stage providers.
func NewRegistry(providers Providers, cfg RegistryConfig, logger *slog.Logger) *Registry {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: providers,
		cfg:       cfg,
		logger:    logger,
		jobs:      make(map[string]*Job),
		streams:   make(map[string]*Broadcaster),
	}
}

// CreateJob validates the request, registers a new running job and starts
// its runner in the background. It returns the job ID immediately.
func (r *Registry) CreateJob(ctx context.Context, req Request) (string, error) {
	if err := r.normalize(&req); err != nil {
		return "", err
	}

	id := uuid.New().String()
	job := NewJob(id, req)
	bc := NewBroadcaster(id, r.cfg.EventLogCap, r.logger)

	r.mu.Lock()
	r.jobs[id] = job
	r.streams[id] = bc
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "job created",
		slog.String("job_id", id),
		slog.String("url", req.URL),
		slog.Int("max_leads", req.MaxLeads),
		slog.Bool("skip_gpt", req.SkipAI))

	runner := NewRunner(job, r.providers, bc, r.cfg.Runner, r.logger)
	// The runner outlives the HTTP request that created it.
	go runner.Run(context.WithoutCancel(ctx))

	return id, nil
}

// normalize validates and fills defaults on a request.
func (r *Registry) normalize(req *Request) error {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return invalidRequestf("url is required")
	}
	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalidRequestf("url must be absolute: %q", req.URL)
	}

	if req.MaxLeads == 0 {
		req.MaxLeads = r.cfg.MaxLeadsDefault
	}
	if req.MaxLeads < 10 || req.MaxLeads > r.cfg.MaxLeadsLimit {
		return invalidRequestf("max_leads must be between 10 and %d", r.cfg.MaxLeadsLimit)
	}
	return nil
}

// GetJob returns a point-in-time snapshot of a job.
func (r *Registry) GetJob(id string) (JobView, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return JobView{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// Subscribe attaches a consumer to a job's event stream. For finished
// jobs the subscription replays the retained history, ends with the
// terminal event and is closed immediately.
func (r *Registry) Subscribe(id string) (*Subscription, error) {
	r.mu.RLock()
	bc, ok := r.streams[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return bc.Subscribe(), nil
}

// Unsubscribe detaches a subscription from its job stream.
func (r *Registry) Unsubscribe(id string, sub *Subscription) {
	r.mu.RLock()
	bc, ok := r.streams[id]
	r.mu.RUnlock()
	if ok {
		bc.Unsubscribe(sub)
	}
}

// JobSummary is the list-view projection of a job.
type JobSummary struct {
	JobID       string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	URL         string     `json:"url"`
	TotalLeads  int        `json:"total_leads"`
	HitLeads    int        `json:"hit_leads"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// List returns summaries of all known jobs, newest first.
func (r *Registry) List() []JobSummary {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.RUnlock()

	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		v := j.Snapshot()
		out = append(out, JobSummary{
			JobID:       v.JobID,
			Status:      v.Status,
			URL:         v.URL,
			TotalLeads:  v.TotalLeads,
			HitLeads:    v.HitLeads,
			CreatedAt:   v.CreatedAt,
			CompletedAt: v.CompletedAt,
		})
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// StartJanitor evicts terminal jobs older than the retention TTL until the
// context is cancelled. It is a no-op when retention is disabled.
func (r *Registry) StartJanitor(ctx context.Context) {
	if r.cfg.RetentionTTL <= 0 {
		return
	}
	go func() {
		interval := r.cfg.RetentionTTL / 4
		if interval < time.Minute {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.evictExpired(time.Now().UTC())
			}
		}
	}()
}

// evictExpired removes terminal jobs whose completion time is older than
// the retention TTL.
func (r *Registry) evictExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		v := job.Snapshot()
		if v.Status == StatusRunning || v.CompletedAt == nil {
			continue
		}
		if now.Sub(*v.CompletedAt) > r.cfg.RetentionTTL {
			delete(r.jobs, id)
			delete(r.streams, id)
			r.logger.Info("evicted expired job", slog.String("job_id", id))
		}
	}
}
