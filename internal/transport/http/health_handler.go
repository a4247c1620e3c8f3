package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HealthService reports service readiness, implemented by
// services.HealthService.
type HealthService interface {
	Check(ctx context.Context) HealthStatus
	Version() VersionInfo
}

// HealthStatus is the GET /api/health payload. MissingCredentials lists
// provider keys that are not configured so the operator can see which
// enrichment stages will be skipped.
type HealthStatus struct {
	Status             string   `json:"status"`
	MissingCredentials []string `json:"missing_credentials"`
	HitThreshold       int      `json:"hit_threshold"`
	MaxLeadsDefault    int      `json:"max_leads_default"`
}

// VersionInfo is the GET /api/version payload.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time,omitempty"`
}

// HealthHandler serves health and version endpoints.
type HealthHandler struct {
	service HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(service HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("component", "health_handler")),
	}
}

// Routes returns the health routes.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", h.Health)
	r.Get("/version", h.Version)
	return r
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Check(r.Context()))
}

// Version handles GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}
