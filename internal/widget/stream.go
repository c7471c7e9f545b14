package widget

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/booking-widget/internal/session"
)

// StreamMessage is pushed to the widget over the session stream.
type StreamMessage struct {
	Type    string            `json:"type"` // "snapshot", "pong", "error"
	Session *session.Snapshot `json:"session,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type streamInbound struct {
	Type string `json:"type"` // "ping"
}

// stream upgrades to a websocket that receives a snapshot after every change
// to the session, starting with its current state.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveStream(conn, r, id)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveStream(conn *websocket.Conn, r *http.Request, id string) {
	log := h.logger.WithSession(id)

	updates, unsubscribe := h.hub.Subscribe(id)
	defer unsubscribe()

	snap, err := h.engine.Get(r.Context(), id)
	if err != nil {
		_ = websocket.JSON.Send(conn, StreamMessage{Type: "error", Error: err.Error()})
		return
	}
	if err := websocket.JSON.Send(conn, StreamMessage{Type: "snapshot", Session: &snap}); err != nil {
		return
	}
	log.Debug("widget: stream opened")

	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg streamInbound
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-closed:
			log.Debug("widget: stream closed")
			return
		case <-r.Context().Done():
			return
		case <-pings:
			if err := websocket.JSON.Send(conn, StreamMessage{Type: "pong"}); err != nil {
				return
			}
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, StreamMessage{Type: "snapshot", Session: &s}); err != nil {
				log.Debug("widget: stream send failed", "error", err)
				return
			}
		}
	}
}
