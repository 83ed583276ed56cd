//go:build !windows && !linux && !darwin

package native

import (
	"fmt"
	"runtime"

	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/platform"
)

// unsupportedHook rejects every registration; combos stay inert and the
// manual trigger endpoint remains usable.
type unsupportedHook struct{}

// New returns a hook that cannot watch any key on this OS.
func New() platform.Hook {
	return unsupportedHook{}
}

// RunOnMainThread calls fn directly.
func RunOnMainThread(fn func()) {
	fn()
}

func (unsupportedHook) RegisterPress(c combo.Combo, _ func()) (platform.Handle, error) {
	return 0, fmt.Errorf("%w: global hotkeys are not supported on %s", platform.ErrUnsupportedCombo, runtime.GOOS)
}

func (unsupportedHook) RegisterRelease(part string, _ func()) (platform.Handle, error) {
	return 0, fmt.Errorf("%w: %s on %s", platform.ErrUnsupportedKey, part, runtime.GOOS)
}

func (unsupportedHook) Unregister(platform.Handle) error { return platform.ErrUnknownHandle }

func (unsupportedHook) Close() error { return nil }

// KeyNames returns nothing; no key can be watched here.
func KeyNames() []string { return nil }
