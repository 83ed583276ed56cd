package systray

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

const refreshInterval = time.Second

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	addr        string
	subscribers func() int

	quit     chan struct{}
	quitOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSystrayManager creates a new systray manager. subscribers is polled to
// show how many streams are open.
func NewSystrayManager(addr string, subscribers func() int) *SystrayManager {
	return &SystrayManager{
		addr:        addr,
		subscribers: subscribers,
		quit:        make(chan struct{}),
		stop:        make(chan struct{}),
	}
}

// Run starts the system tray (blocking call, must be on the main thread)
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// onReady is called when the systray is ready
func (m *SystrayManager) onReady() {
	systray.SetIcon(iconData)

	systray.SetTitle("Hotkey Relay")
	systray.SetTooltip("Hotkey Relay - " + m.addr)

	mAddr := systray.AddMenuItem("Listening on "+m.addr, "Local relay address")
	mAddr.Disable()
	mSubs := systray.AddMenuItem(subscriberLabel(0), "Open event streams")
	mSubs.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop the relay")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		last := -1
		for {
			select {
			case <-ticker.C:
				if n := m.subscribers(); n != last {
					mSubs.SetTitle(subscriberLabel(n))
					last = n
				}
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				m.quitOnce.Do(func() { close(m.quit) })
				systray.Quit()
				return
			case <-m.stop:
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}

func subscriberLabel(n int) string {
	if n == 1 {
		return "1 subscriber"
	}
	return fmt.Sprintf("%d subscribers", n)
}
