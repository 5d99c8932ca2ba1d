package handlers

import (
	"errors"
	"net/http"
	"time"

	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// ConversionEvents streams progress and the final result of one job over
// a WebSocket. A job that already finished gets its stored result as a
// single complete event.
// GET /api/conversions/{id}/events
func (h *Handlers) ConversionEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Subscribe before looking the job up so a result published in
	// between is not missed.
	sub := h.hub.Subscribe(id)
	defer sub.Close()

	var finished *events.Event
	if _, ok := h.findActive(id); !ok {
		ev, err := h.storedResult(r, id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeJSONError(w, "conversion not found", http.StatusNotFound)
				return
			}
			logging.Error("Failed to load conversion %s: %v", id, err)
			writeJSONError(w, "failed to load conversion", http.StatusInternalServerError)
			return
		}
		finished = ev
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("WebSocket upgrade failed for %s: %v", id, err)
		return
	}
	defer conn.Close()

	if finished != nil {
		if writeEvent(conn, *finished) == nil {
			closeNormal(conn)
		}
		return
	}

	h.stream(conn, sub, true)
}

// AllEvents streams events for every job until the client disconnects.
// GET /api/events
func (h *Handlers) AllEvents(w http.ResponseWriter, r *http.Request) {
	sub := h.hub.Subscribe("")
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.stream(conn, sub, false)
}

// storedResult returns the complete event for a finished job. A queued row
// without a result yields nil so the caller streams live events instead.
func (h *Handlers) storedResult(r *http.Request, id string) (*events.Event, error) {
	if h.history == nil {
		return nil, database.ErrNotFound
	}
	rec, err := h.history.GetConversion(r.Context(), id)
	if err != nil {
		return nil, err
	}
	result := rec.Result
	if result == nil && rec.Status == database.StatusInterrupted {
		result = &media.ConversionResult{
			JobID:  id,
			Error:  "conversion interrupted by a restart",
			Reason: media.ReasonExecution,
		}
	}
	if result == nil {
		return nil, nil
	}
	return &events.Event{Type: events.TypeComplete, JobID: id, Result: result}, nil
}

func (h *Handlers) stream(conn *websocket.Conn, sub *events.Subscription, stopOnTerminal bool) {
	metrics.WebSocketSubscribers.Inc()
	defer metrics.WebSocketSubscribers.Dec()

	// Clients only send control frames; the reader exists to process
	// them and to notice the connection going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub.C:
			if !ok {
				closeNormal(conn)
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				logging.Debug("WebSocket write failed for %s: %v", ev.JobID, err)
				return
			}
			if stopOnTerminal && ev.Terminal() {
				closeNormal(conn)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev events.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
