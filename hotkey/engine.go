// Package hotkey turns raw, possibly repeating press signals from the OS hook
// into one fire-event per physical press-and-hold.
package hotkey

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"markestedt/hotkeyrelay/broadcast"
	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/platform"
)

// DefaultReconcileInterval is how often Run re-syncs hook registrations
// when no change notification arrives.
const DefaultReconcileInterval = time.Second

// Publisher receives fire-events.
type Publisher interface {
	Publish(ev broadcast.Event) int
}

type registration struct {
	combo    combo.Combo
	press    platform.Handle
	releases []platform.Handle
	held     bool
}

// Engine keeps hook registrations in sync with a combo registry and
// de-repeats press signals.
type Engine struct {
	hook     platform.Hook
	registry *combo.Registry
	pub      Publisher

	reconcileMu sync.Mutex // serializes passes

	mu      sync.Mutex
	current combo.Set
	synced  bool
	regs    map[combo.Combo]*registration
	passes  int
}

// NewEngine creates an engine. Nothing is registered until the first
// Reconcile.
func NewEngine(hook platform.Hook, registry *combo.Registry, pub Publisher) *Engine {
	return &Engine{
		hook:     hook,
		registry: registry,
		pub:      pub,
		regs:     make(map[combo.Combo]*registration),
	}
}

// Reconcile compares the registry snapshot with what is registered. If they
// differ, every registration is dropped and the snapshot is registered from
// scratch. Returns true if a pass ran.
func (e *Engine) Reconcile() bool {
	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	snap := e.registry.Snapshot()

	e.mu.Lock()
	if e.synced && e.current.Equal(snap) {
		e.mu.Unlock()
		return false
	}
	old := e.regs
	e.regs = make(map[combo.Combo]*registration, len(snap))
	e.current = snap
	e.synced = true
	e.passes++
	e.mu.Unlock()

	e.unregister(old)

	registered := 0
	for _, c := range snap.Sorted() {
		if e.register(c) {
			registered++
		}
	}

	slog.Info("Hotkeys reconciled", "combos", len(snap), "registered", registered)
	return true
}

// register hooks c. A press fault leaves the combo inert. A release fault
// only costs that part its re-arm signal.
func (e *Engine) register(c combo.Combo) bool {
	r := &registration{combo: c}

	// Visible to callbacks before the hooks exist so early signals are not
	// mistaken for stale ones.
	e.mu.Lock()
	e.regs[c] = r
	e.mu.Unlock()

	press, err := e.hook.RegisterPress(c, func() { e.onPress(r) })
	if err != nil {
		slog.Warn("Failed to register hotkey", "combo", c, "error", err)
		e.drop(r)
		return false
	}
	e.setPress(r, press)

	for _, part := range c.Parts() {
		h, err := e.hook.RegisterRelease(part, func() { e.onRelease(r) })
		if err != nil {
			slog.Warn("Failed to register key release", "combo", c, "key", part, "error", err)
			continue
		}
		e.addRelease(r, h)
	}
	return true
}

func (e *Engine) setPress(r *registration, h platform.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r.press = h
}

func (e *Engine) addRelease(r *registration, h platform.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r.releases = append(r.releases, h)
}

// drop removes a partially registered combo.
func (e *Engine) drop(r *registration) {
	e.mu.Lock()
	if e.regs[r.combo] == r {
		delete(e.regs, r.combo)
	}
	e.mu.Unlock()
	e.unregister(map[combo.Combo]*registration{r.combo: r})
}

func (e *Engine) unregister(regs map[combo.Combo]*registration) {
	for c, r := range regs {
		e.mu.Lock()
		handles := append([]platform.Handle(nil), r.releases...)
		if r.press != 0 {
			handles = append(handles, r.press)
		}
		e.mu.Unlock()

		for _, h := range handles {
			if err := e.hook.Unregister(h); err != nil {
				slog.Debug("Failed to unregister hook", "combo", c, "error", err)
			}
		}
	}
}

func (e *Engine) onPress(r *registration) {
	e.mu.Lock()
	if e.regs[r.combo] != r || r.held {
		e.mu.Unlock()
		return
	}
	r.held = true
	e.mu.Unlock()

	e.pub.Publish(broadcast.Fired(r.combo, broadcast.SourceHotkey))
}

func (e *Engine) onRelease(r *registration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.regs[r.combo] != r {
		return
	}
	r.held = false
}

// Held reports whether c fired and has not seen a release since.
func (e *Engine) Held(c combo.Combo) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.regs[c]
	return ok && r.held
}

// Registered returns the combos that currently have live hooks.
func (e *Engine) Registered() []combo.Combo {
	e.mu.Lock()
	defer e.mu.Unlock()
	set := make(combo.Set, len(e.regs))
	for c := range e.regs {
		set[c] = struct{}{}
	}
	return set.Sorted()
}

// Passes returns how many reconciliation passes have run.
func (e *Engine) Passes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.passes
}

// Clear drops every registration. The next Reconcile registers from scratch.
func (e *Engine) Clear() {
	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	e.mu.Lock()
	old := e.regs
	e.regs = make(map[combo.Combo]*registration)
	e.current = nil
	e.synced = false
	e.mu.Unlock()

	e.unregister(old)
}

// Run reconciles immediately, then on every tick and every registry change,
// until ctx is done. All registrations are dropped on return.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer e.Clear()

	e.Reconcile()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Reconcile()
		case <-e.registry.Changed():
			e.Reconcile()
		}
	}
}
