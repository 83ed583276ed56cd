package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"markestedt/hotkeyrelay/auth"
	"markestedt/hotkeyrelay/broadcast"
	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/config"
	"markestedt/hotkeyrelay/storage"
)

const (
	maxBodyBytes    = 64 * 1024
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server is the local HTTP endpoint layer.
type Server struct {
	token    auth.Token
	registry *combo.Registry
	hub      *broadcast.Hub
	db       *storage.DB // nil when history is disabled
	config   *config.Config

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	stopped  chan struct{}
}

// NewServer creates a new server. db may be nil.
func NewServer(token auth.Token, registry *combo.Registry, hub *broadcast.Hub, db *storage.DB, cfg *config.Config) *Server {
	return &Server{
		token:    token,
		registry: registry,
		hub:      hub,
		db:       db,
		config:   cfg,
		stopped:  make(chan struct{}),
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/hello", only(http.MethodGet, s.handleHello))
	mux.HandleFunc("/events", only(http.MethodGet, s.requireAuth(true, s.handleEvents)))
	mux.HandleFunc("/ws", only(http.MethodGet, s.requireAuth(true, s.handleWebSocket)))
	mux.HandleFunc("/config", only(http.MethodPost, s.requireAuth(false, s.handleConfig)))
	mux.HandleFunc("/trigger", only(http.MethodPost, s.requireAuth(false, s.handleTrigger)))
	mux.HandleFunc("/history", only(http.MethodGet, s.requireAuth(false, s.handleHistory)))
	mux.HandleFunc("/stats", only(http.MethodGet, s.requireAuth(false, s.handleStats)))

	return withCORS(mux)
}

// Start binds the listener and serves in the background until ctx is done.
// A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("server already started")
	}

	addr := s.config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// OPTIONS * is answered by the CORS middleware, not net/http.
		DisableGeneralOptionsHandler: true,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	slog.Info("Starting server", "url", "http://"+ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done is closed once the server has shut down after Start.
func (s *Server) Done() <-chan struct{} {
	return s.stopped
}

func (s *Server) shutdown() {
	defer close(s.stopped)

	// Closing the hub ends every stream worker so Shutdown does not wait on them.
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("Server shutdown incomplete", "error", err)
		return
	}
	slog.Info("Server stopped")
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// only answers any other method with 404, the same as an unknown path.
func only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.NotFound(w, r)
			return
		}
		next(w, r)
	}
}

func (s *Server) requireAuth(allowQuery bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.token.VerifyRequest(r, allowQuery); err != nil {
			slog.Debug("Rejected request", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}
