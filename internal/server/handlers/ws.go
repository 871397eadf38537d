package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/triagekit/triagekit/internal/errors"
	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/notify"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API already allows cross-origin REST calls; the socket carries
	// the same public data.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WatchJob handles GET /ws/{job_id}: push every status transition of one
// job over a WebSocket. The connection closes after the terminal event or
// when the client goes away; a dropped client never affects the job.
func (a *API) WatchJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := bugstore.GetJob(r.Context(), a.DB, jobID)
	if errors.Is(err, bugstore.ErrJobNotFound) {
		apperrors.WriteError(w, r, apperrors.CodeNotFound, "job not found", map[string]any{"job_id": jobID})
		return
	}
	if err != nil {
		a.Log.Error("load job for watch", zap.String("job", jobID), zap.Error(err))
		apperrors.WriteError(w, r, apperrors.CodeInternal, "could not load job", nil)
		return
	}

	// Subscribe before the snapshot so no transition can slip between.
	sub := a.Hub.Subscribe(jobID)
	defer a.Hub.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Log.Warn("websocket upgrade", zap.String("job", jobID), zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	snapshot := notify.Event{JobID: job.ID, Status: job.Status, Logs: job.Logs}
	if job.Status.Terminal() {
		snapshot.Bugs = job.Bugs
	}
	if err := writeEvent(conn, snapshot); err != nil {
		return
	}
	if job.Status.Terminal() {
		closeNormally(conn)
		return
	}

	// Drain client frames so pings and close frames are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(conn, event); err != nil {
				return
			}
			if event.Status.Terminal() {
				closeNormally(conn)
				return
			}
		case <-clientGone:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event notify.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(event)
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}
