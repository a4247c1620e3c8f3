package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// EventSink receives progress and terminal events from a runner. The
// Broadcaster satisfies it; tests substitute a recorder.
type EventSink interface {
	Publish(ev ProgressEvent)
	Succeed()
	Fail(message string)
}

// RunnerConfig tunes stage execution.
type RunnerConfig struct {
	// HitThreshold is the minimum score for a lead to classify as a hit.
	HitThreshold int
	// StageConcurrency bounds the number of leads processed in parallel
	// inside the per-lead enrichment stages.
	StageConcurrency int
	// ContactBatchSize is the number of leads per contact-provider call.
	ContactBatchSize int
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration
}

func (c *RunnerConfig) applyDefaults() {
	if c.HitThreshold <= 0 {
		c.HitThreshold = DefaultHitThreshold
	}
	if c.StageConcurrency <= 0 {
		c.StageConcurrency = 4
	}
	if c.ContactBatchSize <= 0 {
		c.ContactBatchSize = 50
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
}

// Runner executes the five pipeline stages for one job. It is the sole
// writer of job state; everything readers see goes through Job snapshots
// and the event sink.
type Runner struct {
	job       *Job
	providers Providers
	sink      EventSink
	cfg       RunnerConfig
	logger    *slog.Logger

	mu        sync.Mutex
	lastTotal float64
}

// NewRunner wires a runner for a job.
func NewRunner(job *Job, providers Providers, sink EventSink, cfg RunnerConfig, logger *slog.Logger) *Runner {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		job:       job,
		providers: providers,
		sink:      sink,
		cfg:       cfg,
		logger:    logger.With(slog.String("job_id", job.ID())),
	}
}

// Run drives the job from scrape to completion. Stage failures in the
// scrape stage abort the job; failures in later stages affect single leads
// and are logged, never fatal.
func (r *Runner) Run(ctx context.Context) {
	start := time.Now()

	if err := r.runScrape(ctx); err != nil {
		r.abort(err)
		return
	}
	if err := ctx.Err(); err != nil {
		r.abort(NewStageFatal(StageScrape, "job cancelled", err))
		return
	}

	r.runWebEnrich(ctx)
	r.runContactEnrich(ctx)
	r.runScore()
	r.runAIEnrich(ctx)

	if err := ctx.Err(); err != nil {
		r.abort(NewStageFatal(StageAI, "job cancelled", err))
		return
	}

	leads := r.job.Leads()
	stats := Aggregate(leads)
	r.job.Complete(stats)

	r.logger.Info("job completed",
		slog.Int("total_leads", len(leads)),
		slog.Int("avg_score", stats.AvgScore),
		slog.Duration("duration", time.Since(start)))

	r.sink.Succeed()
}

// abort moves the job to error and delivers the terminal error event.
func (r *Runner) abort(err error) {
	msg := err.Error()
	if se, ok := err.(*StageError); ok {
		msg = se.Message
		if se.Err != nil {
			msg = fmt.Sprintf("%s: %v", se.Message, se.Err)
		}
	}
	r.logger.Error("job failed", slog.String("error", msg))
	r.job.Fail(msg)
	r.sink.Fail(msg)
}

// emit publishes a progress event, clamping fractions and enforcing that
// total progress never decreases.
func (r *Runner) emit(stage int, frac float64, message string) {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	total := stageBase(stage) + StageWeight(stage)*frac
	// Guard against float drift on the final event.
	if stage == StageCount && frac == 1 {
		total = 1.0
	}
	total = math.Min(total, 1.0)

	r.mu.Lock()
	if total < r.lastTotal {
		total = r.lastTotal
	}
	r.lastTotal = total
	r.mu.Unlock()

	r.sink.Publish(ProgressEvent{
		Step:          stage,
		StepName:      StageName(stage),
		Message:       message,
		Progress:      frac,
		TotalProgress: total,
	})
}

// runScrape executes stage 1. An error or an empty lead set is fatal.
func (r *Runner) runScrape(ctx context.Context) error {
	req := r.job.Request()
	r.emit(StageScrape, 0, "Opening source page")

	leads, err := r.providers.Scraper.Scrape(ctx, req.URL, req.MaxLeads, func(done, total int, message string) {
		frac := 0.0
		if total > 0 {
			frac = float64(done) / float64(total)
		}
		r.emit(StageScrape, frac, message)
	})
	if err != nil {
		return NewStageFatal(StageScrape, "scraping failed", err)
	}
	if len(leads) == 0 {
		return NewStageFatal(StageScrape, ErrNoLeads.Error(), nil)
	}

	r.job.SetLeads(leads)
	r.emit(StageScrape, 1, fmt.Sprintf("Scraped %d leads", len(leads)))
	return nil
}

// runWebEnrich executes stage 2: per-lead profile and website discovery
// with bounded concurrency. Lookup failures are soft.
func (r *Runner) runWebEnrich(ctx context.Context) {
	if r.providers.Web == nil {
		r.emit(StageWeb, 1, "Web enrichment skipped")
		return
	}

	leads := r.job.Leads()
	total := len(leads)
	r.emit(StageWeb, 0, "Searching the web for profiles")

	var done int
	var doneMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.StageConcurrency)
	for i := range leads {
		i := i
		lead := leads[i]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.cfg.CallTimeout)
			profile, err := r.providers.Web.Lookup(callCtx, lead.FirstName, lead.LastName, lead.Company)
			cancel()
			if err != nil {
				r.logger.Warn("web lookup failed",
					slog.String("lead", lead.FullName()),
					slog.String("error", err.Error()))
			} else {
				r.job.SetWebEnrichment(i, profile.ProfileURL, profile.Website, profile.WebsiteExcerpt)
			}

			doneMu.Lock()
			done++
			n := done
			doneMu.Unlock()
			r.emit(StageWeb, float64(n)/float64(total),
				fmt.Sprintf("Web enrichment %d/%d", n, total))
			return nil
		})
	}
	_ = g.Wait()

	r.emit(StageWeb, 1, "Web enrichment complete")
}

// runContactEnrich executes stage 3: contact discovery in provider-sized
// batches. Batch failures are soft; missing provider skips the stage.
func (r *Runner) runContactEnrich(ctx context.Context) {
	if r.providers.Contact == nil {
		r.emit(StageContact, 1, "Contact enrichment skipped (no provider credentials)")
		return
	}

	leads := r.job.Leads()
	total := len(leads)
	r.emit(StageContact, 0, "Resolving contact details")

	processed := 0
	for start := 0; start < total; start += r.cfg.ContactBatchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + r.cfg.ContactBatchSize
		if end > total {
			end = total
		}

		batch := make([]ContactQuery, 0, end-start)
		for _, l := range leads[start:end] {
			batch = append(batch, ContactQuery{
				FirstName: l.FirstName,
				LastName:  l.LastName,
				Company:   l.Company,
				Website:   l.Website,
			})
		}

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		infos, err := r.providers.Contact.EnrichBatch(callCtx, batch)
		cancel()
		if err != nil {
			r.logger.Warn("contact batch failed",
				slog.Int("batch_start", start),
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
		} else {
			for k, info := range infos {
				if k >= len(batch) {
					break
				}
				r.job.SetContact(start+k, info.Email, info.Phone)
			}
		}

		processed = end
		r.emit(StageContact, float64(processed)/float64(total),
			fmt.Sprintf("Contact enrichment %d/%d", processed, total))
	}

	r.emit(StageContact, 1, "Contact enrichment complete")
}

// runScore executes stage 4: deterministic scoring of every lead.
func (r *Runner) runScore() {
	leads := r.job.Leads()
	r.emit(StageScore, 0, "Scoring leads")

	hits := 0
	for i, l := range leads {
		score, hit := Classify(l, r.cfg.HitThreshold)
		r.job.SetScore(i, score, hit)
		if hit {
			hits++
		}
	}

	r.emit(StageScore, 1, fmt.Sprintf("Scored %d leads, %d hits", len(leads), hits))
}

// runAIEnrich executes stage 5: AI summaries for hit leads only, with
// bounded concurrency. Skipped entirely when requested or unconfigured,
// while still completing its share of total progress.
func (r *Runner) runAIEnrich(ctx context.Context) {
	req := r.job.Request()
	if req.SkipAI {
		r.emit(StageAI, 1, "AI enrichment skipped by request")
		return
	}
	if r.providers.AI == nil {
		r.emit(StageAI, 1, "AI enrichment skipped (no provider credentials)")
		return
	}

	leads := r.job.Leads()
	var hitIdx []int
	for i, l := range leads {
		if l.IsHit {
			hitIdx = append(hitIdx, i)
		}
	}
	total := len(hitIdx)
	if total == 0 {
		r.emit(StageAI, 1, "No hit leads to enrich")
		return
	}

	r.emit(StageAI, 0, fmt.Sprintf("Generating insights for %d hit leads", total))

	if r.providers.Profile != nil {
		r.fetchProfileContext(ctx, leads, hitIdx)
		// Re-read so the summaries below see the profile text.
		leads = r.job.Leads()
	}

	var done int
	var doneMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.StageConcurrency)
	for _, i := range hitIdx {
		i := i
		lead := leads[i]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.cfg.CallTimeout)
			insight, err := r.providers.AI.Summarize(callCtx, lead)
			cancel()
			if err != nil {
				r.logger.Warn("ai enrichment failed",
					slog.String("lead", lead.FullName()),
					slog.String("error", err.Error()))
			} else {
				r.job.SetAIInsight(i, insight.ActivitySummary, insight.ConversionAngle)
			}

			doneMu.Lock()
			done++
			n := done
			doneMu.Unlock()
			r.emit(StageAI, float64(n)/float64(total),
				fmt.Sprintf("AI enrichment %d/%d", n, total))
			return nil
		})
	}
	_ = g.Wait()

	r.emit(StageAI, 1, "AI enrichment complete")
}

// fetchProfileContext scrapes the public profile pages of the hit leads
// that have one, storing the text as AI context. The whole batch shares
/// one fetcher session, so it runs sequentially and failure is soft: the
// summaries fall back to whatever context the earlier stages collected.
func (r *Runner) fetchProfileContext(ctx context.Context, leads []Lead, hitIdx []int) {
	var withProfile []int
	var urls []string
	for _, i := range hitIdx {
		if leads[i].ProfileURL != "" {
			withProfile = append(withProfile, i)
			urls = append(urls, leads[i].ProfileURL)
		}
	}
	if len(urls) == 0 {
		return
	}

	// The per-call timeout covers one page; scale it for the batch.
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(len(urls))*r.cfg.CallTimeout)
	texts, err := r.providers.Profile.FetchProfiles(fetchCtx, urls)
	cancel()
	if err != nil {
		r.logger.Warn("profile context fetch failed",
			slog.Int("leads", len(urls)),
			slog.String("error", err.Error()))
		return
	}

	for n, i := range withProfile {
		if n < len(texts) && texts[n] != "" {
			r.job.SetProfileText(i, texts[n])
		}
	}
}
