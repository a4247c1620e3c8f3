package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the registry.
var (
	// ErrJobNotFound is returned when no job exists for the given ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidRequest is returned when a request fails validation
	// before a job is created.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoLeads is the fatal scrape outcome when the source yields an
	// empty lead set.
	ErrNoLeads = errors.New("no leads found at source")
)

// StageError wraps a failure inside a pipeline stage. Fatal errors abort
// the whole job; non-fatal ones affect a single lead and are only logged.
type StageError struct {
	Stage   int
	Message string
	Fatal   bool
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %d (%s): %s: %v", e.Stage, StageName(e.Stage), e.Message, e.Err)
	}
	return fmt.Sprintf("stage %d (%s): %s", e.Stage, StageName(e.Stage), e.Message)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageFatal builds a job-aborting stage error.
func NewStageFatal(stage int, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Fatal: true, Err: err}
}

// NewLeadFailure builds a per-lead soft failure for logging.
func NewLeadFailure(stage int, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}

// invalidRequestf wraps ErrInvalidRequest with a formatted reason so
// callers can match with errors.Is.
func invalidRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}
