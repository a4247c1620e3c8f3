package http

import (
	"context"

	"leadpulse/internal/pipeline"
)

// JobService is the interface the job handlers depend on, implemented by
// services.JobService and mocked in tests.
type JobService interface {
	CreateJob(ctx context.Context, req pipeline.Request) (string, error)
	GetJob(ctx context.Context, id string) (pipeline.JobView, error)
	ListJobs(ctx context.Context) []pipeline.JobSummary
	Subscribe(id string) (*pipeline.Subscription, error)
	Unsubscribe(id string, sub *pipeline.Subscription)
}
