package pipeline

// Stage indices. Progress events are 1-based so clients can render
// "Step 2/5" directly.
const (
	StageScrape  = 1
	StageWeb     = 2
	StageContact = 3
	StageScore   = 4
	StageAI      = 5

	StageCount = 5
)

// stageNames are the human-readable labels attached to progress events.
var stageNames = [StageCount + 1]string{
	"",
	"Scraping leads",
	"Web enrichment",
	"Contact enrichment",
	"Hit scoring",
	"AI enrichment",
}

// stageWeights is each stage's share of overall job progress. The five
// entries sum to 1.0 so a finished run always reports total_progress of
// exactly 1.0 regardless of which stages were skipped.
var stageWeights = [StageCount + 1]float64{
	0,
	0.30, // scrape
	0.20, // web enrichment
	0.20, // contact enrichment
	0.10, // scoring
	0.20, // AI enrichment
}

// StageName returns the display label for a stage index.
func StageName(stage int) string {
	if stage < 1 || stage > StageCount {
		return "unknown"
	}
	return stageNames[stage]
}

// StageWeight returns the fraction of total progress a stage contributes.
func StageWeight(stage int) float64 {
	if stage < 1 || stage > StageCount {
		return 0
	}
	return stageWeights[stage]
}

// stageBase is the total progress accumulated by all stages before the
// given one.
func stageBase(stage int) float64 {
	base := 0.0
	for s := 1; s < stage && s <= StageCount; s++ {
		base += stageWeights[s]
	}
	return base
}

// ProgressEvent is a single progress update for a running job. Progress is
// the completion fraction within the current stage; TotalProgress is the
// weighted overall fraction and never decreases over the life of a job.
type ProgressEvent struct {
	Step          int     `json:"step"`
	StepName      string  `json:"step_name"`
	Message       string  `json:"message"`
	Progress      float64 `json:"progress"`
	TotalProgress float64 `json:"total_progress"`
}

// Stream event envelope types delivered to subscribers.
const (
	EventProgress = "progress"
	EventDone     = "done"
	EventError    = "error"
)

// StreamEvent wraps a payload for delivery over a job's event stream.
// Type is one of EventProgress, EventDone or EventError.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
