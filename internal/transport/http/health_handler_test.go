package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHealthService struct {
	status HealthStatus
}

func (s stubHealthService) Check(context.Context) HealthStatus { return s.status }
func (s stubHealthService) Version() VersionInfo               { return VersionInfo{Version: "1.2.3"} }

func TestHealthEndpoint(t *testing.T) {
	svc := stubHealthService{status: HealthStatus{
		Status:             "degraded",
		MissingCredentials: []string{"GOOGLE_API_KEY"},
		HitThreshold:       50,
		MaxLeadsDefault:    500,
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Mount("/api", NewHealthHandler(svc, logger).Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got.Status)
	assert.Equal(t, []string{"GOOGLE_API_KEY"}, got.MissingCredentials)
	assert.Equal(t, 50, got.HitThreshold)
	assert.Equal(t, 500, got.MaxLeadsDefault)
}

func TestVersionEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Mount("/api", NewHealthHandler(stubHealthService{}, logger).Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1.2.3")
}
