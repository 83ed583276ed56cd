package platform

import (
	"fmt"
	"sync"

	"markestedt/hotkeyrelay/combo"
)

type fakePress struct {
	combo combo.Combo
	fn    func()
}

type fakeRelease struct {
	part string
	fn   func()
}

// FakeHook is an in-memory Hook whose signals are driven by tests.
// Callbacks run synchronously on the simulating goroutine.
type FakeHook struct {
	mu       sync.Mutex
	next     Handle
	presses  map[Handle]fakePress
	releases map[Handle]fakeRelease
	failing  map[string]bool

	registerCalls   int
	unregisterCalls int
	closed          bool
}

// NewFake creates an empty FakeHook.
func NewFake() *FakeHook {
	return &FakeHook{
		presses:  make(map[Handle]fakePress),
		releases: make(map[Handle]fakeRelease),
		failing:  make(map[string]bool),
	}
}

// FailOn makes every registration involving part return ErrUnsupportedKey.
func (f *FakeHook) FailOn(part string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[part] = true
}

func (f *FakeHook) RegisterPress(c combo.Combo, fn func()) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	for _, p := range c.Parts() {
		if f.failing[p] {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedKey, p)
		}
	}
	f.next++
	f.presses[f.next] = fakePress{combo: c, fn: fn}
	return f.next, nil
}

func (f *FakeHook) RegisterRelease(part string, fn func()) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.failing[part] {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedKey, part)
	}
	f.next++
	f.releases[f.next] = fakeRelease{part: part, fn: fn}
	return f.next, nil
}

func (f *FakeHook) Unregister(h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisterCalls++
	if _, ok := f.presses[h]; ok {
		delete(f.presses, h)
		return nil
	}
	if _, ok := f.releases[h]; ok {
		delete(f.releases, h)
		return nil
	}
	return ErrUnknownHandle
}

func (f *FakeHook) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presses = make(map[Handle]fakePress)
	f.releases = make(map[Handle]fakeRelease)
	f.closed = true
	return nil
}

// SimPress delivers a press signal to every registration watching c.
func (f *FakeHook) SimPress(c combo.Combo) {
	f.mu.Lock()
	var fns []func()
	for _, p := range f.presses {
		if p.combo == c {
			fns = append(fns, p.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SimRelease delivers a release signal to every registration watching part.
func (f *FakeHook) SimRelease(part string) {
	f.mu.Lock()
	var fns []func()
	for _, r := range f.releases {
		if r.part == part {
			fns = append(fns, r.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Registrations returns the number of live press and release registrations.
func (f *FakeHook) Registrations() (presses, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.presses), len(f.releases)
}

// RegisterCalls returns how many Register* calls were made in total.
func (f *FakeHook) RegisterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls
}

// UnregisterCalls returns how many Unregister calls were made in total.
func (f *FakeHook) UnregisterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unregisterCalls
}

// Closed reports whether Close was called.
func (f *FakeHook) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
