package chat

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/solution-connector/assistant/internal/model/chat"
)

const (
	MessageTypeSubmit   = "submit"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
	MessageTypeSnapshot = "snapshot"
	MessageTypeError    = "error"

	writeWait = 10 * time.Second
)

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outgoingMessage struct {
	Type      string         `json:"type"`
	Data      *chat.Snapshot `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// wsWriter serializes writes; gorilla connections allow one writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(msg outgoingMessage) error {
	msg.Timestamp = time.Now().UnixMilli()

	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(msg)
}

func (w *wsWriter) snapshot(snap chat.Snapshot) error {
	return w.send(outgoingMessage{Type: MessageTypeSnapshot, Data: &snap})
}

// handleWebSocket pushes a snapshot on connect and after every change, and
// accepts submissions from the widget.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "chat").Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "chat").Str("session_id", chi.URLParam(r, "sessionID")).Logger()
	writer := &wsWriter{conn: conn}

	updates, unsubscribe := controller.Subscribe(16)
	defer unsubscribe()

	if err := writer.snapshot(controller.Snapshot()); err != nil {
		logger.Debug().Err(err).Msg("failed to send initial snapshot")
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug().Err(err).Msg("websocket read ended")
				}
				return
			}

			switch msg.Type {
			case MessageTypeSubmit:
				if _, err := controller.Submit(msg.Text); err != nil {
					_ = writer.send(outgoingMessage{Type: MessageTypeError, Error: err.Error()})
				}
			case MessageTypePing:
				_ = writer.send(outgoingMessage{Type: MessageTypePong})
			default:
				_ = writer.send(outgoingMessage{Type: MessageTypeError, Error: "unknown message type: " + msg.Type})
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				writer.mu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "widget closed"),
					time.Now().Add(writeWait))
				writer.mu.Unlock()
				return
			}
			if err := writer.snapshot(snap); err != nil {
				logger.Debug().Err(err).Msg("websocket write failed, dropping subscriber")
				return
			}
		}
	}
}
