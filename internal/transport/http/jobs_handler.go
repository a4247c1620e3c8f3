package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "leadpulse/internal/errors"
	"leadpulse/internal/exporter"
	"leadpulse/internal/files"
	"leadpulse/internal/pipeline"
)

// JobsHandler serves the job API: creation, retrieval, listing, streaming
// and exports.
type JobsHandler struct {
	service  JobService
	logger   *slog.Logger
	validate *validator.Validate
	upgrader websocketUpgrader
	timings  StreamTimings
	archive  *files.Archive
}

// NewJobsHandler creates the job handler.
func NewJobsHandler(service JobService, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		service:  service,
		logger:   logger.With(slog.String("component", "jobs_handler")),
		validate: validator.New(),
		upgrader: newUpgrader(),
		timings:  defaultStreamTimings(),
	}
}

// SetExportArchive enables on-disk archiving of generated exports.
func (h *JobsHandler) SetExportArchive(a *files.Archive) {
	h.archive = a
}

// Routes returns the job routes.
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(render.SetContentType(render.ContentTypeJSON)).Group(func(r chi.Router) {
		r.Post("/", h.CreateJob)
		r.Get("/", h.ListJobs)
		r.Get("/{jobID}", h.GetJob)
	})

	r.Get("/{jobID}/stream", h.StreamJob)
	r.Get("/{jobID}/export", h.ExportCSV)
	r.Get("/{jobID}/export.xlsx", h.ExportXLSX)

	return r
}

// createJobRequest is the POST /api/jobs body.
type createJobRequest struct {
	// MaxLeads bounds are enforced by the registry, which knows the
	// configured limit; the handler only checks shape.
	URL      string `json:"url" validate:"required,url"`
	MaxLeads int    `json:"max_leads"`
	SkipGPT  bool   `json:"skip_gpt"`
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

func (r *createJobResponse) Render(w http.ResponseWriter, req *http.Request) error {
	render.Status(req, http.StatusAccepted)
	return nil
}

// CreateJob handles POST /api/jobs: validate, register, return the job ID
// immediately while the pipeline runs in the background.
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.renderError(w, r, apierrors.ErrValidation(verrs[0].Field(), validationMessage(verrs[0])))
			return
		}
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	jobID, err := h.service.CreateJob(r.Context(), pipeline.Request{
		URL:      req.URL,
		MaxLeads: req.MaxLeads,
		SkipAI:   req.SkipGPT,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			h.renderError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		h.logger.Error("job creation failed", slog.String("error", err.Error()))
		h.renderError(w, r, apierrors.ErrInternalServer)
		return
	}

	render.Render(w, r, &createJobResponse{JobID: jobID})
}

// GetJob handles GET /api/jobs/{jobID}. While the job runs this returns a
// consistent partial snapshot; after completion it includes stats.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	view, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, view)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"jobs": h.service.ListJobs(r.Context()),
	})
}

// ExportCSV handles GET /api/jobs/{jobID}/export. Only finished jobs can
// be exported; running jobs get 409.
func (h *JobsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	view, ok := h.exportableJob(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := exporter.WriteCSV(&buf, view.Leads); err != nil {
		h.logger.Error("csv export failed",
			slog.String("job_id", view.JobID),
			slog.String("error", err.Error()))
		h.renderError(w, r, apierrors.ErrInternalServer)
		return
	}

	filename := exporter.Filename(view.JobID, exportTimestamp(view), "csv")
	h.archiveExport(filename, buf.Bytes())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}

// ExportXLSX handles GET /api/jobs/{jobID}/export.xlsx.
func (h *JobsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	view, ok := h.exportableJob(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := exporter.WriteXLSX(&buf, view.Leads); err != nil {
		h.logger.Error("xlsx export failed",
			slog.String("job_id", view.JobID),
			slog.String("error", err.Error()))
		h.renderError(w, r, apierrors.ErrInternalServer)
		return
	}

	filename := exporter.Filename(view.JobID, exportTimestamp(view), "xlsx")
	h.archiveExport(filename, buf.Bytes())

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}

// archiveExport keeps a copy of the generated export on disk. Archive
// failures never fail the download.
func (h *JobsHandler) archiveExport(filename string, data []byte) {
	if h.archive == nil {
		return
	}
	if _, err := h.archive.Save(filename, data); err != nil {
		h.logger.Warn("failed to archive export",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
	}
}

// loadJob resolves the jobID route parameter, rendering the 404 itself
// when the job is unknown.
func (h *JobsHandler) loadJob(w http.ResponseWriter, r *http.Request) (pipeline.JobView, bool) {
	jobID := chi.URLParam(r, "jobID")
	view, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			h.renderError(w, r, apierrors.ErrJobNotFound)
		} else {
			h.logger.Error("job lookup failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()))
			h.renderError(w, r, apierrors.ErrInternalServer)
		}
		return pipeline.JobView{}, false
	}
	return view, true
}

// exportableJob loads the job and enforces the done-only export rule.
func (h *JobsHandler) exportableJob(w http.ResponseWriter, r *http.Request) (pipeline.JobView, bool) {
	view, ok := h.loadJob(w, r)
	if !ok {
		return pipeline.JobView{}, false
	}
	if view.Status != pipeline.StatusDone {
		h.renderError(w, r, apierrors.NotReadyError(view.JobID))
		return pipeline.JobView{}, false
	}
	return view, true
}

func (h *JobsHandler) renderError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	if err := render.Render(w, r, apierrors.NewErrorResponse(apiErr)); err != nil {
		h.logger.Error("render error response failed", slog.String("error", err.Error()))
	}
}

func exportTimestamp(view pipeline.JobView) time.Time {
	if view.CompletedAt != nil {
		return *view.CompletedAt
	}
	return time.Now().UTC()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
