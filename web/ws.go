package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/hotkeyrelay/broadcast"
)

// maxReadMessageSize caps inbound frames; the channel is push-only.
const maxReadMessageSize = 4 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // loopback only; subscribers run on arbitrary page origins
	},
}

// handleWebSocket is the WebSocket variant of /events. Each fire-event is
// one text message. Pings replace the SSE keepalive comment.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Failed to upgrade WebSocket connection", "error", err)
		return
	}
	defer conn.Close()

	client := broadcast.NewClient(s.config.Server.QueueSize)
	handle, err := s.hub.Subscribe(client)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		return
	}
	defer func() {
		s.hub.Unsubscribe(handle)
		client.Close()
	}()

	keepalive := s.config.Keepalive()
	readDeadline := 3 * keepalive

	conn.SetReadLimit(maxReadMessageSize)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// Read pump: only needed to process control frames and notice the peer
	// going away.
	go func() {
		defer client.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("WebSocket read error", "client", client.ID(), "error", err)
				}
				return
			}
		}
	}()

	if err := writeMessage(conn, websocket.TextMessage, broadcast.ReadyEvent().Data()); err != nil {
		return
	}

	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case data := <-client.Frames():
			if err := writeMessage(conn, websocket.TextMessage, data); err != nil {
				slog.Debug("WebSocket write failed", "client", client.ID(), "error", err)
				return
			}
		case <-ticker.C:
			if err := writeMessage(conn, websocket.PingMessage, nil); err != nil {
				slog.Debug("WebSocket ping failed", "client", client.ID(), "error", err)
				return
			}
		}
	}
}

// writeMessage is only called from the handler goroutine, which is the
// connection's single writer.
func writeMessage(conn *websocket.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}
