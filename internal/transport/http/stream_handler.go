package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	apierrors "leadpulse/internal/errors"
	"leadpulse/internal/pipeline"
)

// StreamTimings controls WebSocket keep-alive behavior. Pings every
// PingPeriod keep intermediaries from closing idle streams while a long
// scrape produces no events.
type StreamTimings struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

func defaultStreamTimings() StreamTimings {
	return StreamTimings{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: 30 * time.Second,
	}
}

// SetStreamTimings overrides the default keep-alive timing.
func (h *JobsHandler) SetStreamTimings(t StreamTimings) {
	if t.WriteWait > 0 {
		h.timings.WriteWait = t.WriteWait
	}
	if t.PongWait > 0 {
		h.timings.PongWait = t.PongWait
	}
	if t.PingPeriod > 0 {
		h.timings.PingPeriod = t.PingPeriod
	}
}

type websocketUpgrader = websocket.Upgrader

func newUpgrader() websocketUpgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The API serves a local frontend; cross-origin policy is
		// enforced by the CORS middleware on the REST routes.
		CheckOrigin: func(*http.Request) bool { return true },
	}
}

// StreamJob handles GET /api/jobs/{jobID}/stream. The connection first
// receives the job's retained event history, then live events until the
// terminal done or error frame, after which the socket closes.
func (h *JobsHandler) StreamJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	sub, err := h.service.Subscribe(jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			h.renderError(w, r, apierrors.ErrJobNotFound)
			return
		}
		h.renderError(w, r, apierrors.ErrInternalServer)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.service.Unsubscribe(jobID, sub)
		h.logger.Warn("websocket upgrade failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	logger := h.logger.With(slog.String("job_id", jobID))
	logger.Debug("stream subscriber connected", slog.String("remote", conn.RemoteAddr().String()))

	go h.readPump(conn, jobID, sub, logger)
	h.writePump(conn, jobID, sub, logger)
}

// readPump discards client frames and detects disconnects so the
// subscription is released as soon as the peer goes away.
func (h *JobsHandler) readPump(conn *websocket.Conn, jobID string, sub *pipeline.Subscription, logger *slog.Logger) {
	defer h.service.Unsubscribe(jobID, sub)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(h.timings.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.timings.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("stream subscriber dropped", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump forwards stream events to the socket and keeps it alive with
// pings. A closed subscription channel means the job reached its terminal
// event; the socket is then closed cleanly.
func (h *JobsHandler) writePump(conn *websocket.Conn, jobID string, sub *pipeline.Subscription, logger *slog.Logger) {
	ticker := time.NewTicker(h.timings.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		h.service.Unsubscribe(jobID, sub)
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(h.timings.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("stream write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.timings.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
