package hotkey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/hotkeyrelay/broadcast"
	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/platform"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(ev broadcast.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return 1
}

func (p *recordingPublisher) combos() []combo.Combo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]combo.Combo, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Combo)
	}
	return out
}

func newTestEngine(t *testing.T, combos ...string) (*Engine, *platform.FakeHook, *combo.Registry, *recordingPublisher) {
	t.Helper()
	hook := platform.NewFake()
	reg := combo.NewRegistry()
	_, err := reg.Replace(combos)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewEngine(hook, reg, pub), hook, reg, pub
}

func TestReconcileIsIdempotent(t *testing.T) {
	e, hook, reg, _ := newTestEngine(t, "CTRL+ALT+1", "CTRL+ALT+2")

	assert.True(t, e.Reconcile())
	calls := hook.RegisterCalls()
	assert.False(t, e.Reconcile())
	assert.Equal(t, 1, e.Passes())

	_, err := reg.Replace([]string{"alt+ctrl+1", " ctrl+alt+2 "})
	require.NoError(t, err)
	assert.False(t, e.Reconcile())
	assert.Equal(t, calls, hook.RegisterCalls())

	presses, releases := hook.Registrations()
	assert.Equal(t, 2, presses)
	assert.Equal(t, 6, releases)
}

func TestReconcileReplacesEverything(t *testing.T) {
	e, hook, reg, _ := newTestEngine(t, "CTRL+ALT+1", "CTRL+ALT+2")
	e.Reconcile()

	_, err := reg.Replace([]string{"CTRL+ALT+2", "SHIFT+F5"})
	require.NoError(t, err)
	assert.True(t, e.Reconcile())

	assert.Equal(t, []combo.Combo{"CTRL+ALT+2", "SHIFT+F5"}, e.Registered())
	assert.Equal(t, 2+6, hook.UnregisterCalls())
	presses, releases := hook.Registrations()
	assert.Equal(t, 2, presses)
	assert.Equal(t, 5, releases)
}

func TestReconcileToEmpty(t *testing.T) {
	e, hook, reg, _ := newTestEngine(t, "CTRL+ALT+1")
	e.Reconcile()

	_, err := reg.Replace(nil)
	require.NoError(t, err)
	assert.True(t, e.Reconcile())

	presses, releases := hook.Registrations()
	assert.Zero(t, presses)
	assert.Zero(t, releases)
	assert.Empty(t, e.Registered())
}

func TestPressIsDeRepeated(t *testing.T) {
	e, hook, _, pub := newTestEngine(t, "CTRL+ALT+1")
	e.Reconcile()
	c := combo.MustParse("CTRL+ALT+1")

	for i := 0; i < 5; i++ {
		hook.SimPress(c)
	}
	assert.Equal(t, []combo.Combo{c}, pub.combos())
	assert.True(t, e.Held(c))

	hook.SimRelease("ALT")
	assert.False(t, e.Held(c))

	hook.SimPress(c)
	hook.SimPress(c)
	assert.Equal(t, []combo.Combo{c, c}, pub.combos())
}

func TestReleaseOfAnyPartRearms(t *testing.T) {
	for _, part := range []string{"CTRL", "ALT", "1"} {
		t.Run(part, func(t *testing.T) {
			e, hook, _, pub := newTestEngine(t, "CTRL+ALT+1")
			e.Reconcile()
			c := combo.MustParse("CTRL+ALT+1")

			hook.SimPress(c)
			hook.SimRelease(part)
			hook.SimPress(c)
			assert.Len(t, pub.combos(), 2)
		})
	}
}

func TestReleaseOfUnrelatedPartKeepsHeld(t *testing.T) {
	e, hook, _, pub := newTestEngine(t, "CTRL+ALT+1", "SHIFT+2")
	e.Reconcile()
	c := combo.MustParse("CTRL+ALT+1")

	hook.SimPress(c)
	hook.SimRelease("SHIFT")
	hook.SimPress(c)
	assert.Len(t, pub.combos(), 1)
	assert.True(t, e.Held(c))
}

func TestFiredEventsCarryHotkeySource(t *testing.T) {
	e, hook, _, pub := newTestEngine(t, "META+K")
	e.Reconcile()

	hook.SimPress(combo.MustParse("META+K"))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, broadcast.SourceHotkey, pub.events[0].Source)
}

func TestUnregistrableComboIsInert(t *testing.T) {
	hook := platform.NewFake()
	hook.FailOn("F24")
	reg := combo.NewRegistry()
	_, err := reg.Replace([]string{"CTRL+F24", "CTRL+ALT+1"})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	e := NewEngine(hook, reg, pub)

	assert.True(t, e.Reconcile())
	assert.Equal(t, []combo.Combo{"CTRL+ALT+1"}, e.Registered())

	hook.SimPress(combo.MustParse("CTRL+F24"))
	hook.SimPress(combo.MustParse("CTRL+ALT+1"))
	assert.Equal(t, []combo.Combo{"CTRL+ALT+1"}, pub.combos())
}

func TestReleaseFailureKeepsCombo(t *testing.T) {
	hook := &releaseFailingHook{FakeHook: platform.NewFake(), part: "META"}
	reg := combo.NewRegistry()
	_, err := reg.Replace([]string{"META+1"})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	e := NewEngine(hook, reg, pub)

	e.Reconcile()
	c := combo.MustParse("META+1")
	assert.Equal(t, []combo.Combo{c}, e.Registered())
	presses, releases := hook.Registrations()
	assert.Equal(t, 1, presses)
	assert.Equal(t, 1, releases)

	hook.SimPress(c)
	hook.SimPress(c)
	assert.Len(t, pub.combos(), 1)

	// The remaining release hook still re-arms.
	hook.SimRelease("1")
	hook.SimPress(c)
	assert.Len(t, pub.combos(), 2)
}

type releaseFailingHook struct {
	*platform.FakeHook
	part string
}

func (h *releaseFailingHook) RegisterRelease(part string, fn func()) (platform.Handle, error) {
	if part == h.part {
		return 0, platform.ErrUnsupportedKey
	}
	return h.FakeHook.RegisterRelease(part, fn)
}

func TestStaleCallbacksAreIgnored(t *testing.T) {
	hook := &capturingHook{FakeHook: platform.NewFake()}
	reg := combo.NewRegistry()
	_, err := reg.Replace([]string{"CTRL+ALT+1"})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	e := NewEngine(hook, reg, pub)
	e.Reconcile()

	stale := hook.lastPress
	require.NotNil(t, stale)

	_, err = reg.Replace([]string{"CTRL+ALT+2"})
	require.NoError(t, err)
	e.Reconcile()

	stale()
	assert.Empty(t, pub.combos())
}

// capturingHook keeps the last press callback so a test can invoke it after
// its registration was removed.
type capturingHook struct {
	*platform.FakeHook
	lastPress func()
}

func (h *capturingHook) RegisterPress(c combo.Combo, fn func()) (platform.Handle, error) {
	h.lastPress = fn
	return h.FakeHook.RegisterPress(c, fn)
}

func TestConcurrentPressesFireOnce(t *testing.T) {
	e, hook, _, pub := newTestEngine(t, "CTRL+ALT+1")
	e.Reconcile()
	c := combo.MustParse("CTRL+ALT+1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hook.SimPress(c)
		}()
	}
	wg.Wait()

	assert.Len(t, pub.combos(), 1)
}

func TestRunReactsToRegistryChanges(t *testing.T) {
	e, hook, reg, _ := newTestEngine(t, "CTRL+ALT+1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx, time.Hour)
	}()

	require.Eventually(t, func() bool {
		return len(e.Registered()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err := reg.Replace([]string{"CTRL+ALT+1", "CTRL+ALT+2"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(e.Registered()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	presses, releases := hook.Registrations()
	assert.Zero(t, presses)
	assert.Zero(t, releases)
}
