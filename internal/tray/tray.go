// Package tray provides a system tray menu showing the live session.
package tray

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/vyayama/internal/app"
)

// pollInterval is how often the tray refreshes the session status.
const pollInterval = 500 * time.Millisecond

// Tray represents the system tray application.
type Tray struct {
	status  func() app.Status
	onStop  func()
	onOpen  func()
	onQuit  func()
	current app.Status
	mu      sync.RWMutex

	// Menu items stored for later updates
	menuSession *systray.MenuItem
	menuStop    *systray.MenuItem
}

// New creates a tray that polls status for the live session.
func New(status func() app.Status) *Tray {
	return &Tray{status: status}
}

// OnStop sets the callback invoked by the stop session menu item.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnOpen sets the callback invoked by the open dashboard menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Vyayama")
	systray.SetTooltip("Vyayama exercise coach")

	t.mu.Lock()
	t.menuSession = systray.AddMenuItem(SessionTitle(app.Status{}), "Live session")
	t.menuSession.Disable()
	t.menuStop = systray.AddMenuItem("Stop session", "End the live session")
	t.menuStop.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Vyayama")

	ctx, cancel := context.WithCancel(context.Background())
	go t.poll(ctx)

	go func() {
		defer cancel()
		for {
			select {
			case <-t.menuStop.ClickedCh:
				t.invoke(func() func() { return t.onStop })
			case <-menuOpen.ClickedCh:
				t.invoke(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.invoke(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// invoke runs the callback selected under the read lock, outside of it.
func (t *Tray) invoke(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) poll(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.status != nil {
				t.SetStatus(t.status())
			}
		}
	}
}

// SetStatus updates the session menu items. Unchanged status is not redrawn.
func (t *Tray) SetStatus(st app.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st == t.current {
		return
	}
	t.current = st

	if t.menuSession == nil {
		return
	}
	t.menuSession.SetTitle(SessionTitle(st))
	if st.Active {
		t.menuStop.Enable()
		systray.SetTitle(fmt.Sprintf("Vyayama %d", st.Reps))
	} else {
		t.menuStop.Disable()
		systray.SetTitle("Vyayama")
	}
}

// Status returns the last status shown.
func (t *Tray) Status() app.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// SessionTitle renders a session status as a menu title.
func SessionTitle(st app.Status) string {
	if !st.Active {
		return "No session"
	}
	reps := "reps"
	if st.Reps == 1 {
		reps = "rep"
	}
	return fmt.Sprintf("%s: %d %s (%s)", st.Exercise, st.Reps, reps, st.Mode)
}
