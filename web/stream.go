package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"markestedt/hotkeyrelay/broadcast"
)

var keepaliveFrame = []byte(": keepalive\n\n")

// handleEvents holds an SSE stream open. It subscribes before writing the
// ready frame so nothing published in between is lost.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	client := broadcast.NewClient(s.config.Server.QueueSize)
	handle, err := s.hub.Subscribe(client)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer func() {
		s.hub.Unsubscribe(handle)
		client.Close()
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, rc, dataFrame(broadcast.ReadyEvent().Data())); err != nil {
		slog.Debug("Stream closed before ready", "client", client.ID(), "error", err)
		return
	}

	ticker := time.NewTicker(s.config.Keepalive())
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case data := <-client.Frames():
			if err := writeFrame(w, rc, dataFrame(data)); err != nil {
				slog.Debug("Stream write failed", "client", client.ID(), "error", err)
				return
			}
		case <-ticker.C:
			if err := writeFrame(w, rc, keepaliveFrame); err != nil {
				slog.Debug("Keepalive failed", "client", client.ID(), "error", err)
				return
			}
		}
	}
}

func dataFrame(data []byte) []byte {
	return []byte(fmt.Sprintf("data: %s\n\n", data))
}

func writeFrame(w io.Writer, rc *http.ResponseController, frame []byte) error {
	if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return rc.Flush()
}
