package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpulse/internal/pipeline"
)

func dialStream(t *testing.T, svc JobService, jobID string) *websocket.Conn {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Mount("/api/jobs", NewJobsHandler(svc, logger).Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + jobID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvents(t *testing.T, conn *websocket.Conn) []pipeline.StreamEvent {
	t.Helper()
	var events []pipeline.StreamEvent
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return events
			}
			t.Fatalf("read stream: %v", err)
		}
		var ev pipeline.StreamEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		events = append(events, ev)
	}
}

func TestStreamReplayAndLive(t *testing.T) {
	bc := pipeline.NewBroadcaster("j1", 100, nil)
	svc := &mockJobService{broadcaster: bc}

	// History before the client connects.
	bc.Publish(pipeline.ProgressEvent{Step: 1, StepName: "Scraping leads", Progress: 0.5, TotalProgress: 0.15})
	bc.Publish(pipeline.ProgressEvent{Step: 1, StepName: "Scraping leads", Progress: 1, TotalProgress: 0.30})

	conn := dialStream(t, svc, "j1")

	// Live events after the connection.
	go func() {
		time.Sleep(50 * time.Millisecond)
		bc.Publish(pipeline.ProgressEvent{Step: 2, StepName: "Web enrichment", Progress: 1, TotalProgress: 0.50})
		bc.Succeed()
	}()

	events := readEvents(t, conn)
	require.Len(t, events, 4)

	assert.Equal(t, pipeline.EventProgress, events[0].Type)
	assert.Equal(t, pipeline.EventProgress, events[2].Type)
	assert.Equal(t, pipeline.EventDone, events[3].Type)

	// Replay order matches publish order.
	var first pipeline.ProgressEvent
	raw, _ := json.Marshal(events[0].Data)
	require.NoError(t, json.Unmarshal(raw, &first))
	assert.Equal(t, 1, first.Step)
	assert.Equal(t, 0.15, first.TotalProgress)
}

func TestStreamFinishedJob(t *testing.T) {
	bc := pipeline.NewBroadcaster("j1", 100, nil)
	bc.Publish(pipeline.ProgressEvent{Step: 5, Progress: 1, TotalProgress: 1})
	bc.Fail("no leads found at source")

	conn := dialStream(t, &mockJobService{broadcaster: bc}, "j1")
	events := readEvents(t, conn)

	require.Len(t, events, 2)
	assert.Equal(t, pipeline.EventProgress, events[0].Type)
	assert.Equal(t, pipeline.EventError, events[1].Type)
}

func TestStreamUnknownJob(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Mount("/api/jobs", NewJobsHandler(&mockJobService{}, logger).Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/jobs/unknown/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
