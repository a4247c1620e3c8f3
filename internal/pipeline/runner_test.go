package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sinkRecorder captures everything a runner emits.
type sinkRecorder struct {
	mu     sync.Mutex
	events []ProgressEvent
	done   bool
	failed bool
	errMsg string
}

func (s *sinkRecorder) Publish(ev ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sinkRecorder) Succeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
}

func (s *sinkRecorder) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
	s.errMsg = message
}

func (s *sinkRecorder) all() []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProgressEvent, len(s.events))
	copy(out, s.events)
	return out
}

type stubScraper struct {
	leads []Lead
	err   error
}

func (s stubScraper) Scrape(_ context.Context, _ string, _ int, progress ProgressFunc) ([]Lead, error) {
	if progress != nil {
		progress(1, 2, "page 1")
		progress(2, 2, "page 2")
	}
	return s.leads, s.err
}

type stubWeb struct {
	profile WebProfile
	err     error
	calls   int
	mu      sync.Mutex
}

func (s *stubWeb) Lookup(context.Context, string, string, string) (WebProfile, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.profile, s.err
}

type stubContact struct {
	info ContactInfo
	err  error
}

func (s stubContact) EnrichBatch(_ context.Context, batch []ContactQuery) ([]ContactInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]ContactInfo, len(batch))
	for i := range out {
		out[i] = s.info
	}
	return out, nil
}

type stubAI struct {
	insight AIInsight
	err     error
	calls   int
	mu      sync.Mutex
}

func (s *stubAI) Summarize(context.Context, Lead) (AIInsight, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.insight, s.err
}

func sampleLeads() []Lead {
	return []Lead{
		{FirstName: "Grace", LastName: "Hopper", Company: "Navy"},
		{FirstName: "Alan", LastName: "Turing", Company: "NPL"},
		{FirstName: "Edsger", LastName: "Dijkstra", Company: "THE"},
	}
}

func runJob(t *testing.T, req Request, providers Providers, cfg RunnerConfig) (*Job, *sinkRecorder) {
	t.Helper()
	job := NewJob("test-job", req)
	sink := &sinkRecorder{}
	NewRunner(job, providers, sink, cfg, nil).Run(context.Background())
	return job, sink
}

func TestRunnerHappyPath(t *testing.T) {
	web := &stubWeb{profile: WebProfile{
		ProfileURL: "https://linkedin.com/in/x",
		Website:    "https://example.com",
	}}
	ai := &stubAI{insight: AIInsight{
		ActivitySummary: "Ships compilers.",
		ConversionAngle: "Mention COBOL.",
	}}
	providers := Providers{
		Scraper: stubScraper{leads: sampleLeads()},
		Web:     web,
		Contact: stubContact{info: ContactInfo{Email: "x@example.com", Phone: "+1 555 0100"}},
		AI:      ai,
	}

	job, sink := runJob(t, Request{URL: "https://source.example/list"}, providers, RunnerConfig{})

	assert.True(t, sink.done)
	assert.False(t, sink.failed)
	require.Equal(t, StatusDone, job.Status())

	view := job.Snapshot()
	assert.Equal(t, 3, view.TotalLeads)
	assert.Equal(t, 3, view.HitLeads)
	assert.Equal(t, 0, view.NoHitLeads)
	require.NotNil(t, view.Stats)
	assert.Equal(t, 100, view.Stats.EmailPct)
	assert.Equal(t, 100, view.Stats.AvgScore)

	for _, l := range view.Leads {
		assert.Equal(t, 100, l.HitScore)
		assert.True(t, l.IsHit)
		assert.Equal(t, "Ships compilers.", l.ActivitySummary)
		assert.Equal(t, "Mention COBOL.", l.ConversionAngle)
	}

	assert.Equal(t, 3, web.calls)
	assert.Equal(t, 3, ai.calls)
}

func TestRunnerTotalProgressMonotoneToOne(t *testing.T) {
	providers := Providers{
		Scraper: stubScraper{leads: sampleLeads()},
		Web:     &stubWeb{},
		Contact: stubContact{info: ContactInfo{Email: "x@example.com"}},
		AI:      &stubAI{},
	}

	_, sink := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{StageConcurrency: 1})

	events := sink.all()
	require.NotEmpty(t, events)

	prev := 0.0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.TotalProgress, prev,
			"total progress regressed at step %d message %q", ev.Step, ev.Message)
		assert.LessOrEqual(t, ev.TotalProgress, 1.0)
		prev = ev.TotalProgress
	}
	assert.Equal(t, 1.0, events[len(events)-1].TotalProgress)
}

func TestRunnerSkipAI(t *testing.T) {
	ai := &stubAI{}
	providers := Providers{
		Scraper: stubScraper{leads: sampleLeads()},
		Web:     &stubWeb{profile: WebProfile{ProfileURL: "p", Website: "w"}},
		Contact: stubContact{info: ContactInfo{Email: "e"}},
		AI:      ai,
	}

	job, sink := runJob(t, Request{URL: "https://source.example", SkipAI: true}, providers, RunnerConfig{})

	assert.True(t, sink.done)
	assert.Equal(t, 0, ai.calls)
	assert.Equal(t, StatusDone, job.Status())

	events := sink.all()
	last := events[len(events)-1]
	assert.Equal(t, StageAI, last.Step)
	assert.Equal(t, 1.0, last.TotalProgress)
	assert.Contains(t, last.Message, "skipped")

	for _, l := range job.Leads() {
		assert.Empty(t, l.ActivitySummary)
		assert.Empty(t, l.ConversionAngle)
	}
}

func TestRunnerZeroLeadsIsFatal(t *testing.T) {
	providers := Providers{Scraper: stubScraper{leads: nil}}

	job, sink := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{})

	assert.True(t, sink.failed)
	assert.False(t, sink.done)
	assert.Contains(t, sink.errMsg, "no leads")
	assert.Equal(t, StatusError, job.Status())

	view := job.Snapshot()
	assert.Equal(t, StatusError, view.Status)
	assert.NotEmpty(t, view.Error)
	assert.Nil(t, view.Stats)
}

func TestRunnerScrapeErrorIsFatal(t *testing.T) {
	providers := Providers{Scraper: stubScraper{err: errors.New("login wall")}}

	job, sink := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{})

	assert.True(t, sink.failed)
	assert.Contains(t, sink.errMsg, "login wall")
	assert.Equal(t, StatusError, job.Status())
}

func TestRunnerEnrichmentFailuresAreSoft(t *testing.T) {
	providers := Providers{
		Scraper: stubScraper{leads: sampleLeads()},
		Web:     &stubWeb{err: errors.New("search quota exhausted")},
		Contact: stubContact{err: errors.New("provider 500")},
		AI:      &stubAI{err: errors.New("model unavailable")},
	}

	job, sink := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{})

	assert.True(t, sink.done, "per-lead failures must not fail the job")
	assert.Equal(t, StatusDone, job.Status())

	view := job.Snapshot()
	require.NotNil(t, view.Stats)
	assert.Equal(t, Stats{}, *view.Stats)
	for _, l := range view.Leads {
		assert.Empty(t, l.Email)
		assert.Empty(t, l.ProfileURL)
		assert.Equal(t, 0, l.HitScore)
		assert.False(t, l.IsHit)
	}
}

func TestRunnerMissingProvidersSkipStages(t *testing.T) {
	providers := Providers{Scraper: stubScraper{leads: sampleLeads()}}

	job, sink := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{})

	assert.True(t, sink.done)
	assert.Equal(t, StatusDone, job.Status())

	events := sink.all()
	assert.Equal(t, 1.0, events[len(events)-1].TotalProgress)

	var skipped []int
	for _, ev := range events {
		if strings.Contains(ev.Message, "skipped") {
			skipped = append(skipped, ev.Step)
		}
	}
	assert.Contains(t, skipped, StageWeb)
	assert.Contains(t, skipped, StageContact)
	assert.Contains(t, skipped, StageAI)
}

func TestRunnerEnrichmentIsAdditiveOnly(t *testing.T) {
	scraped := []Lead{{
		FirstName: "Grace",
		LastName:  "Hopper",
		Company:   "Navy",
		Email:     "grace@navy.example",
		Website:   "https://navy.example",
	}}
	providers := Providers{
		Scraper: stubScraper{leads: scraped},
		Web:     &stubWeb{profile: WebProfile{ProfileURL: "p", Website: "https://other.example"}},
		Contact: stubContact{info: ContactInfo{Email: "other@x", Phone: "+1 555 0100"}},
	}

	job, _ := runJob(t, Request{URL: "https://source.example", SkipAI: true}, providers, RunnerConfig{})

	leads := job.Leads()
	require.Len(t, leads, 1)
	assert.Equal(t, "grace@navy.example", leads[0].Email, "existing email must not be overwritten")
	assert.Equal(t, "https://navy.example", leads[0].Website, "existing website must not be overwritten")
	assert.Equal(t, "p", leads[0].ProfileURL, "absent field is filled")
	assert.Equal(t, "+1 555 0100", leads[0].Phone, "absent field is filled")
}

func TestRunnerAIOnlyTouchesHitLeads(t *testing.T) {
	leads := []Lead{
		{FirstName: "Hit", Email: "h@x", ProfileURL: "p"}, // 70
		{FirstName: "Miss"},                               // 0
	}
	ai := &stubAI{insight: AIInsight{ActivitySummary: "s", ConversionAngle: "a"}}
	providers := Providers{
		Scraper: stubScraper{leads: leads},
		AI:      ai,
	}

	job, _ := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{})

	got := job.Leads()
	require.Len(t, got, 2)
	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, "s", got[0].ActivitySummary)
	assert.Empty(t, got[1].ActivitySummary)
}

func TestRunnerContactBatching(t *testing.T) {
	var batches [][]ContactQuery
	var mu sync.Mutex
	contact := contactFunc(func(_ context.Context, batch []ContactQuery) ([]ContactInfo, error) {
		mu.Lock()
		cp := make([]ContactQuery, len(batch))
		copy(cp, batch)
		batches = append(batches, cp)
		mu.Unlock()
		return make([]ContactInfo, len(batch)), nil
	})

	leads := make([]Lead, 7)
	for i := range leads {
		leads[i].FirstName = string(rune('a' + i))
	}
	providers := Providers{
		Scraper: stubScraper{leads: leads},
		Contact: contact,
	}

	runJob(t, Request{URL: "https://source.example", SkipAI: true}, providers, RunnerConfig{ContactBatchSize: 3})

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
}

type contactFunc func(ctx context.Context, batch []ContactQuery) ([]ContactInfo, error)

func (f contactFunc) EnrichBatch(ctx context.Context, batch []ContactQuery) ([]ContactInfo, error) {
	return f(ctx, batch)
}

type webFunc func(firstName, lastName, company string) (WebProfile, error)

func (f webFunc) Lookup(_ context.Context, firstName, lastName, company string) (WebProfile, error) {
	return f(firstName, lastName, company)
}

type stubProfile struct {
	texts map[string]string
	err   error

	mu   sync.Mutex
	urls []string
}

func (s *stubProfile) FetchProfiles(_ context.Context, urls []string) ([]string, error) {
	s.mu.Lock()
	s.urls = append(s.urls, urls...)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = s.texts[u]
	}
	return out, nil
}

type aiRecorder struct {
	mu    sync.Mutex
	leads []Lead
}

func (a *aiRecorder) Summarize(_ context.Context, lead Lead) (AIInsight, error) {
	a.mu.Lock()
	a.leads = append(a.leads, lead)
	a.mu.Unlock()
	return AIInsight{ActivitySummary: "active", ConversionAngle: "angle"}, nil
}

func TestRunnerProfileContextOnlyForHitLeadsWithProfile(t *testing.T) {
	web := webFunc(func(firstName, _, _ string) (WebProfile, error) {
		if firstName == "Grace" {
			return WebProfile{
				ProfileURL: "https://linkedin.com/in/grace",
				Website:    "https://navy.example",
			}, nil
		}
		return WebProfile{}, nil
	})
	profile := &stubProfile{texts: map[string]string{
		"https://linkedin.com/in/grace": "Rear admiral. Compiler pioneer.",
	}}
	ai := &aiRecorder{}
	providers := Providers{
		Scraper: stubScraper{leads: sampleLeads()[:2]},
		Web:     web,
		AI:      ai,
		Profile: profile,
	}

	// Threshold 40: Grace (profile 30 + website 10) hits, Alan misses.
	job, sink := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{HitThreshold: 40})

	require.Equal(t, StatusDone, job.Status())
	assert.True(t, sink.done)

	// Only the hit lead's profile page was visited.
	assert.Equal(t, []string{"https://linkedin.com/in/grace"}, profile.urls)

	// The summary saw the scraped profile text.
	require.Len(t, ai.leads, 1)
	assert.Equal(t, "Grace", ai.leads[0].FirstName)
	assert.Equal(t, "Rear admiral. Compiler pioneer.", ai.leads[0].ProfileText)
}

func TestRunnerProfileFetchFailureIsSoft(t *testing.T) {
	web := &stubWeb{profile: WebProfile{
		ProfileURL: "https://linkedin.com/in/x",
		Website:    "https://example.com",
	}}
	ai := &aiRecorder{}
	providers := Providers{
		Scraper: stubScraper{leads: sampleLeads()},
		Web:     web,
		Contact: stubContact{info: ContactInfo{Email: "x@example.com"}},
		AI:      ai,
		Profile: &stubProfile{err: errors.New("browser session lost")},
	}

	job, sink := runJob(t, Request{URL: "https://source.example"}, providers, RunnerConfig{})

	require.Equal(t, StatusDone, job.Status())
	assert.True(t, sink.done)

	// Summaries still ran, just without profile context.
	require.Len(t, ai.leads, 3)
	for _, lead := range ai.leads {
		assert.Empty(t, lead.ProfileText)
	}
}
