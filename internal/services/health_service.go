package services

import (
	"context"
	"log/slog"

	"leadpulse/internal/config"
	transport "leadpulse/internal/transport/http"
)

// Build information, overridable at link time.
var (
	Version   = "dev"
	BuildTime = ""
)

// HealthService reports readiness and configuration visibility: which
// provider credentials are missing (and therefore which stages will be
// skipped) plus the effective pipeline settings.
type HealthService struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewHealthService creates the health service.
func NewHealthService(cfg *config.Config, logger *slog.Logger) *HealthService {
	return &HealthService{
		cfg:    cfg,
		logger: logger.With(slog.String("service", "health")),
	}
}

// Check implements transport.HealthService.
func (s *HealthService) Check(ctx context.Context) transport.HealthStatus {
	missing := s.cfg.MissingCredentials()
	if missing == nil {
		missing = []string{}
	}
	status := "ok"
	if len(missing) > 0 {
		status = "degraded"
		s.logger.WarnContext(ctx, "provider credentials missing",
			slog.Any("missing", missing))
	}
	return transport.HealthStatus{
		Status:             status,
		MissingCredentials: missing,
		HitThreshold:       s.cfg.Pipeline.HitThreshold,
		MaxLeadsDefault:    s.cfg.Pipeline.MaxLeadsDefault,
	}
}

// Version implements transport.HealthService.
func (s *HealthService) Version() transport.VersionInfo {
	return transport.VersionInfo{Version: Version, BuildTime: BuildTime}
}
