//go:build linux || darwin

package native

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"

	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/platform"
)

type xPress struct {
	hk   *hotkey.Hotkey
	stop chan struct{}
}

type xRelease struct {
	part string
	fn   func()
}

// xHook implements platform.Hook on top of golang.design/x/hotkey.
//
// x/hotkey reports key-up for the primary key of a registered combo only,
// so release registrations fire when a combo's primary key goes up.
type xHook struct {
	mu       sync.Mutex
	next     platform.Handle
	presses  map[platform.Handle]*xPress
	releases map[platform.Handle]xRelease

	closeOnce sync.Once
	dispatch  *platform.Dispatcher
}

// New creates the x/hotkey backed hook.
func New() platform.Hook {
	return &xHook{
		presses:  make(map[platform.Handle]*xPress),
		releases: make(map[platform.Handle]xRelease),
		dispatch: platform.NewDispatcher(platform.DefaultDispatchQueue),
	}
}

// RunOnMainThread runs fn with the main thread available to x/hotkey,
// which macOS requires.
func RunOnMainThread(fn func()) {
	mainthread.Init(fn)
}

func (h *xHook) RegisterPress(c combo.Combo, fn func()) (platform.Handle, error) {
	name := c.Key()
	if name == "" {
		return 0, fmt.Errorf("%w: %s has no primary key", platform.ErrUnsupportedCombo, c)
	}
	key, ok := keyMap[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", platform.ErrUnsupportedKey, name)
	}
	mods := make([]hotkey.Modifier, 0, len(c.Modifiers()))
	for _, m := range c.Modifiers() {
		mod, ok := modifierMap[m]
		if !ok {
			return 0, fmt.Errorf("%w: %s", platform.ErrUnsupportedKey, m)
		}
		mods = append(mods, mod)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return 0, fmt.Errorf("failed to register %s: %w", c, err)
	}

	p := &xPress{hk: hk, stop: make(chan struct{})}
	go h.listen(p, name, fn)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.presses[h.next] = p
	return h.next, nil
}

func (h *xHook) listen(p *xPress, key string, fn func()) {
	for {
		select {
		case <-p.stop:
			return
		case _, ok := <-p.hk.Keydown():
			if !ok {
				return
			}
			h.dispatch.Enqueue(fn)
		case _, ok := <-p.hk.Keyup():
			if !ok {
				return
			}
			h.released(key)
		}
	}
}

func (h *xHook) released(part string) {
	h.mu.Lock()
	var fns []func()
	for _, r := range h.releases {
		if r.part == part {
			fns = append(fns, r.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		h.dispatch.Enqueue(fn)
	}
}

func (h *xHook) RegisterRelease(part string, fn func()) (platform.Handle, error) {
	if _, ok := modifierMap[part]; !ok {
		if _, ok := keyMap[part]; !ok {
			return 0, fmt.Errorf("%w: %s", platform.ErrUnsupportedKey, part)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.releases[h.next] = xRelease{part: part, fn: fn}
	return h.next, nil
}

func (h *xHook) Unregister(handle platform.Handle) error {
	h.mu.Lock()
	p, isPress := h.presses[handle]
	if isPress {
		delete(h.presses, handle)
	}
	_, isRelease := h.releases[handle]
	if isRelease {
		delete(h.releases, handle)
	}
	h.mu.Unlock()

	switch {
	case isPress:
		close(p.stop)
		if err := p.hk.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister hotkey: %w", err)
		}
		return nil
	case isRelease:
		return nil
	default:
		return platform.ErrUnknownHandle
	}
}

func (h *xHook) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		presses := h.presses
		h.presses = make(map[platform.Handle]*xPress)
		h.releases = make(map[platform.Handle]xRelease)
		h.mu.Unlock()

		for _, p := range presses {
			close(p.stop)
			if err := p.hk.Unregister(); err != nil {
				slog.Warn("Failed to unregister hotkey on close", "error", err)
			}
		}
		h.dispatch.Stop()
	})
	return nil
}

var keyMap = map[string]hotkey.Key{
	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD,
	"E": hotkey.KeyE, "F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH,
	"I": hotkey.KeyI, "J": hotkey.KeyJ, "K": hotkey.KeyK, "L": hotkey.KeyL,
	"M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO, "P": hotkey.KeyP,
	"Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX,
	"Y": hotkey.KeyY, "Z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"F1": hotkey.KeyF1, "F2": hotkey.KeyF2, "F3": hotkey.KeyF3, "F4": hotkey.KeyF4,
	"F5": hotkey.KeyF5, "F6": hotkey.KeyF6, "F7": hotkey.KeyF7, "F8": hotkey.KeyF8,
	"F9": hotkey.KeyF9, "F10": hotkey.KeyF10, "F11": hotkey.KeyF11, "F12": hotkey.KeyF12,
	"SPACE": hotkey.KeySpace, "ENTER": hotkey.KeyReturn, "RETURN": hotkey.KeyReturn,
	"ESC": hotkey.KeyEscape, "ESCAPE": hotkey.KeyEscape, "TAB": hotkey.KeyTab,
	"DELETE": hotkey.KeyDelete,
	"LEFT": hotkey.KeyLeft, "RIGHT": hotkey.KeyRight, "UP": hotkey.KeyUp, "DOWN": hotkey.KeyDown,
}

// KeyNames lists the non-modifier key names this backend understands.
func KeyNames() []string {
	return sortedKeys(keyMap)
}
