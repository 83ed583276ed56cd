package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"markestedt/hotkeyrelay/broadcast"
	"markestedt/hotkeyrelay/combo"
)

// handleHello is the unauthenticated bootstrap probe. It hands out the
// token to any local caller.
func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"token": s.token.Value(),
	})
}

// handleConfig replaces the watched combo set
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Combos json.RawMessage `json:"combos"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A missing "combos" is an empty list. null or a non-list is rejected.
	var combos []string
	if len(req.Combos) > 0 {
		if req.Combos[0] != '[' {
			writeError(w, http.StatusBadRequest, errCombosNotList.Error())
			return
		}
		if err := json.Unmarshal(req.Combos, &combos); err != nil {
			writeError(w, http.StatusBadRequest, errCombosNotList.Error())
			return
		}
	}

	count, err := s.registry.Replace(combos)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("Combos updated", "count", count, "combos", s.registry.Snapshot().Sorted())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": count})
}

// handleTrigger publishes a fire-event for a registered combo without a key press
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Combo string `json:"combo"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := combo.Parse(req.Combo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.registry.Contains(c) {
		writeError(w, http.StatusBadRequest, combo.ErrNotRegistered.Error())
		return
	}

	s.hub.Publish(broadcast.Fired(c, broadcast.SourceTrigger))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleHistory returns recent fire-events
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit > 1000 {
		limit = 1000
	}

	fires, err := s.db.GetFires(limit, offset)
	if err != nil {
		slog.Error("Failed to get history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	total, err := s.db.GetFireCount()
	if err != nil {
		slog.Error("Failed to get fire count", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fires":  fires,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleStats returns per-combo statistics for the specified time range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	days := queryInt(r, "days", 7)
	if days <= 0 {
		days = 7
	}

	stats, err := s.db.GetComboStats(days)
	if err != nil {
		slog.Error("Failed to get combo stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":        days,
		"combos":      stats,
		"subscribers": s.hub.Count(),
	})
}

var (
	errInvalidJSON   = errors.New("invalid JSON")
	errCombosNotList = errors.New("combos must be a list of strings")
)

// decodeBody reads a size-limited JSON object. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errInvalidJSON
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if body[0] != '{' {
		return errInvalidJSON
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errInvalidJSON
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
