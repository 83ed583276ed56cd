package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"markestedt/hotkeyrelay/auth"
	"markestedt/hotkeyrelay/broadcast"
	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/config"
	"markestedt/hotkeyrelay/hotkey"
	"markestedt/hotkeyrelay/platform"
	"markestedt/hotkeyrelay/storage"
	"markestedt/hotkeyrelay/web"
)

// Agent wires the hook, the edge-trigger engine, the broadcaster and the
// HTTP server together for one process lifetime.
type Agent struct {
	cfg      *config.Config
	hook     platform.Hook
	registry *combo.Registry
	hub      *broadcast.Hub
	engine   *hotkey.Engine
	db       *storage.DB
	recorder *storage.Recorder
	server   *web.Server
}

// NewAgent creates a new agent instance
func NewAgent(cfg *config.Config, hook platform.Hook) (*Agent, error) {
	token, err := auth.Issue()
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:      cfg,
		hook:     hook,
		registry: combo.NewRegistry(),
		hub:      broadcast.NewHub(),
	}

	if cfg.History.Enabled {
		path, err := cfg.HistoryPath()
		if err != nil {
			return nil, err
		}
		db, err := storage.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		a.db = db
		a.recorder = storage.NewRecorder(db)
		a.hub.OnPublish(a.recorder.Observe)
		slog.Info("History enabled", "path", path)
	}

	a.engine = hotkey.NewEngine(hook, a.registry, a.hub)
	a.server = web.NewServer(token, a.registry, a.hub, a.db, cfg)
	return a, nil
}

// Subscribers returns the number of open push channels.
func (a *Agent) Subscribers() int {
	return a.hub.Count()
}

// Run serves until ctx is done. Only startup failures are returned.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		a.close()
		return err
	}

	var wg sync.WaitGroup
	if a.cfg.Hotkeys.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.engine.Run(ctx, a.cfg.ReconcileInterval())
		}()
	} else {
		slog.Info("Global hotkeys disabled, only /trigger publishes events")
	}

	slog.Info("Hotkey relay started", "addr", a.server.Addr())

	<-ctx.Done()
	wg.Wait()
	<-a.server.Done()
	a.close()
	return nil
}

func (a *Agent) close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Failed to close history", "error", err)
		}
	}
	if err := a.hook.Close(); err != nil {
		slog.Warn("Failed to close keyboard hook", "error", err)
	}
}
