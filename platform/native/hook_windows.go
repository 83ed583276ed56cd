//go:build windows

package native

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/hotkeyrelay/combo"
	"markestedt/hotkeyrelay/platform"
)

var (
	user32              = windows.NewLazySystemDLL("user32.dll")
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	getMessage          = user32.NewProc("GetMessageW")
	postThreadMessage   = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL = 13
	wmQuit       = 0x0012
	wmKeydown    = 0x0100
	wmKeyup      = 0x0101
	wmSyskeydown = 0x0104
	wmSyskeyup   = 0x0105
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

type pressBinding struct {
	mods    [][]uint32 // one VK set per modifier part
	absent  [][]uint32 // modifiers that must be up for an exact match
	trigger []uint32   // VKs whose key-down evaluates the binding
	fn      func()
}

type releaseBinding struct {
	vks []uint32
	fn  func()
}

// windowsHook implements platform.Hook with a WH_KEYBOARD_LL hook running
// on a dedicated OS thread.
type windowsHook struct {
	mu       sync.Mutex
	next     platform.Handle
	presses  map[platform.Handle]pressBinding
	releases map[platform.Handle]releaseBinding
	down     map[uint32]bool

	startOnce sync.Once
	startErr  error
	threadID  uint32
	loopDone  chan struct{}
	closeOnce sync.Once

	dispatch *platform.Dispatcher
}

// New creates the Windows keyboard hook. The OS hook is installed lazily
// on the first registration.
func New() platform.Hook {
	return &windowsHook{
		presses:  make(map[platform.Handle]pressBinding),
		releases: make(map[platform.Handle]releaseBinding),
		down:     make(map[uint32]bool),
		loopDone: make(chan struct{}),
		dispatch: platform.NewDispatcher(platform.DefaultDispatchQueue),
	}
}

// RunOnMainThread calls fn directly; the Windows hook runs on its own thread.
func RunOnMainThread(fn func()) {
	fn()
}

func (h *windowsHook) RegisterPress(c combo.Combo, fn func()) (platform.Handle, error) {
	var b pressBinding
	wanted := make(map[string]bool)
	for _, m := range c.Modifiers() {
		vks, err := partVKs(m)
		if err != nil {
			return 0, err
		}
		b.mods = append(b.mods, vks)
		wanted[m] = true
	}
	for name, vks := range modifierVKs {
		if !wanted[name] {
			b.absent = append(b.absent, vks)
		}
	}
	if key := c.Key(); key != "" {
		vks, err := partVKs(key)
		if err != nil {
			return 0, err
		}
		b.trigger = vks
	} else {
		// Modifier-only: the last modifier to go down completes the combo.
		for _, vks := range b.mods {
			b.trigger = append(b.trigger, vks...)
		}
	}
	b.fn = fn

	if err := h.start(); err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.presses[h.next] = b
	return h.next, nil
}

func (h *windowsHook) RegisterRelease(part string, fn func()) (platform.Handle, error) {
	vks, err := partVKs(part)
	if err != nil {
		return 0, err
	}
	if err := h.start(); err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.releases[h.next] = releaseBinding{vks: vks, fn: fn}
	return h.next, nil
}

func (h *windowsHook) Unregister(handle platform.Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.presses[handle]; ok {
		delete(h.presses, handle)
		return nil
	}
	if _, ok := h.releases[handle]; ok {
		delete(h.releases, handle)
		return nil
	}
	return platform.ErrUnknownHandle
}

func (h *windowsHook) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.presses = make(map[platform.Handle]pressBinding)
		h.releases = make(map[platform.Handle]releaseBinding)
		threadID := h.threadID
		h.mu.Unlock()

		if threadID != 0 {
			r, _, callErr := postThreadMessage.Call(uintptr(threadID), wmQuit, 0, 0)
			if r == 0 {
				err = fmt.Errorf("failed to stop keyboard hook thread: %w", callErr)
			} else {
				<-h.loopDone
			}
		}
		h.dispatch.Stop()
	})
	return err
}

// start installs the hook once; later calls return the first result.
func (h *windowsHook) start() error {
	h.startOnce.Do(func() {
		errCh := make(chan error, 1)
		go h.runHook(errCh)
		h.startErr = <-errCh
	})
	return h.startErr
}

func (h *windowsHook) runHook(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.loopDone)

	hookProc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 {
			kbInfo := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			h.handleKeyEvent(wParam, kbInfo.vkCode)
		}
		r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return r
	}

	hook, _, err := setWindowsHookEx.Call(
		whKeyboardLL,
		windows.NewCallback(hookProc),
		0,
		0,
	)
	if hook == 0 {
		errCh <- fmt.Errorf("SetWindowsHookEx failed: %w", err)
		return
	}
	defer unhookWindowsHookEx.Call(hook)

	h.mu.Lock()
	h.threadID = windows.GetCurrentThreadId()
	h.mu.Unlock()
	errCh <- nil

	// Low-level hooks are delivered through this thread's message loop.
	var m msg
	for {
		r, _, _ := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			slog.Debug("Keyboard hook message loop exited")
			return
		}
	}
}

// handleKeyEvent runs on the hook thread and only enqueues callbacks.
func (h *windowsHook) handleKeyEvent(wParam uintptr, vk uint32) {
	isDown := wParam == wmKeydown || wParam == wmSyskeydown
	isUp := wParam == wmKeyup || wParam == wmSyskeyup
	if !isDown && !isUp {
		return
	}

	h.mu.Lock()
	var fns []func()
	if isDown {
		h.down[vk] = true
		for _, b := range h.presses {
			if containsVK(b.trigger, vk) && modifiersExact(h.down, b.mods, b.absent) {
				fns = append(fns, b.fn)
			}
		}
	} else {
		delete(h.down, vk)
		for _, b := range h.releases {
			if containsVK(b.vks, vk) {
				fns = append(fns, b.fn)
			}
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		h.dispatch.Enqueue(fn)
	}
}

func containsVK(vks []uint32, vk uint32) bool {
	for _, v := range vks {
		if v == vk {
			return true
		}
	}
	return false
}

// The low-level hook reports side-specific modifier codes, so each
// modifier part matches its generic and left/right virtual keys.
var modifierVKs = map[string][]uint32{
	combo.Ctrl:  {0x11, 0xA2, 0xA3},
	combo.Alt:   {0x12, 0xA4, 0xA5},
	combo.Shift: {0x10, 0xA0, 0xA1},
	combo.Meta:  {0x5B, 0x5C},
}

var keyVKs = map[string]uint32{
	"A": 0x41, "B": 0x42, "C": 0x43, "D": 0x44, "E": 0x45,
	"F": 0x46, "G": 0x47, "H": 0x48, "I": 0x49, "J": 0x4A,
	"K": 0x4B, "L": 0x4C, "M": 0x4D, "N": 0x4E, "O": 0x4F,
	"P": 0x50, "Q": 0x51, "R": 0x52, "S": 0x53, "T": 0x54,
	"U": 0x55, "V": 0x56, "W": 0x57, "X": 0x58, "Y": 0x59, "Z": 0x5A,
	"0": 0x30, "1": 0x31, "2": 0x32, "3": 0x33, "4": 0x34,
	"5": 0x35, "6": 0x36, "7": 0x37, "8": 0x38, "9": 0x39,
	"F1": 0x70, "F2": 0x71, "F3": 0x72, "F4": 0x73,
	"F5": 0x74, "F6": 0x75, "F7": 0x76, "F8": 0x77,
	"F9": 0x78, "F10": 0x79, "F11": 0x7A, "F12": 0x7B,
	"SPACE": 0x20, "ENTER": 0x0D, "RETURN": 0x0D, "ESC": 0x1B, "ESCAPE": 0x1B,
	"TAB": 0x09, "BACKSPACE": 0x08, "DELETE": 0x2E, "INSERT": 0x2D,
	"HOME": 0x24, "END": 0x23, "PAGEUP": 0x21, "PAGEDOWN": 0x22,
	"LEFT": 0x25, "UP": 0x26, "RIGHT": 0x27, "DOWN": 0x28,
}

func partVKs(part string) ([]uint32, error) {
	if vks, ok := modifierVKs[part]; ok {
		return vks, nil
	}
	if vk, ok := keyVKs[part]; ok {
		return []uint32{vk}, nil
	}
	return nil, fmt.Errorf("%w: %s", platform.ErrUnsupportedKey, part)
}

// KeyNames lists the non-modifier key names this backend understands.
func KeyNames() []string {
	return sortedKeys(keyVKs)
}
