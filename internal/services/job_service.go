package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"leadpulse/internal/pipeline"
)

// JobService fronts the pipeline registry for the HTTP layer, adding
// tracing and request-scoped logging around engine operations.
type JobService struct {
	registry *pipeline.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewJobService creates the job service.
func NewJobService(registry *pipeline.Registry, logger *slog.Logger, tracer trace.Tracer) *JobService {
	return &JobService{
		registry: registry,
		logger:   logger.With(slog.String("service", "jobs")),
		tracer:   tracer,
	}
}

// CreateJob validates the request and launches a pipeline run.
func (s *JobService) CreateJob(ctx context.Context, req pipeline.Request) (string, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.create",
		trace.WithAttributes(
			attribute.String("source.url", req.URL),
			attribute.Int("max_leads", req.MaxLeads),
			attribute.Bool("skip_gpt", req.SkipAI),
		))
	defer span.End()

	jobID, err := s.registry.CreateJob(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("job.id", jobID))
	return jobID, nil
}

// GetJob returns a point-in-time snapshot of a job.
func (s *JobService) GetJob(ctx context.Context, id string) (pipeline.JobView, error) {
	_, span := s.tracer.Start(ctx, "jobs.get",
		trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()

	return s.registry.GetJob(id)
}

// ListJobs returns summaries of all known jobs.
func (s *JobService) ListJobs(ctx context.Context) []pipeline.JobSummary {
	_, span := s.tracer.Start(ctx, "jobs.list")
	defer span.End()

	return s.registry.List()
}

// Subscribe attaches a consumer to a job's event stream.
func (s *JobService) Subscribe(id string) (*pipeline.Subscription, error) {
	return s.registry.Subscribe(id)
}

// Unsubscribe detaches a stream consumer.
func (s *JobService) Unsubscribe(id string, sub *pipeline.Subscription) {
	s.registry.Unsubscribe(id, sub)
}
