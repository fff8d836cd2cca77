// Package tray provides a system tray menu for haarlens.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"gocv.io/x/gocv"

	"github.com/ayusman/haarlens/internal/pipeline"
)

// Tray represents the system tray menu. It observes the pipeline and keeps
// its items enabled according to the current affordances.
type Tray struct {
	onStart    func()
	onStop     func()
	onReset    func()
	onSnapshot func()
	onViewer   func()
	onQuit     func()
	status     pipeline.Status
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStatus   *systray.MenuItem
	menuStart    *systray.MenuItem
	menuStop     *systray.MenuItem
	menuReset    *systray.MenuItem
	menuSnapshot *systray.MenuItem
}

// New creates a new Tray showing an idle pipeline.
func New() *Tray {
	return &Tray{}
}

// OnStart sets the callback for the Start Live item.
func (t *Tray) OnStart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback for the Stop item.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnReset sets the callback for the Clear Image item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnSnapshot sets the callback for the Save Snapshot item.
func (t *Tray) OnSnapshot(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSnapshot = fn
}

// OnOpenViewer sets the callback for the Open Viewer item.
func (t *Tray) OnOpenViewer(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onViewer = fn
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

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("haarlens")
	systray.SetTooltip("haarlens cascade detector")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(StatusLine(t.status), "Pipeline status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuStart = systray.AddMenuItem("Start Live", "Start detection on the first camera")
	t.menuStop = systray.AddMenuItem("Stop", "Stop live detection")
	t.menuReset = systray.AddMenuItem("Clear Image", "Unload the current image")
	t.menuSnapshot = systray.AddMenuItem("Save Snapshot", "Save the annotated frame")
	systray.AddSeparator()

	menuViewer := systray.AddMenuItem("Open Viewer...", "Open the viewer in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit haarlens")

	t.applyLocked()
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuStart.ClickedCh:
				t.invoke(func() func() { return t.onStart })
			case <-t.menuStop.ClickedCh:
				t.invoke(func() func() { return t.onStop })
			case <-t.menuReset.ClickedCh:
				t.invoke(func() func() { return t.onReset })
			case <-t.menuSnapshot.ClickedCh:
				t.invoke(func() func() { return t.onSnapshot })
			case <-menuViewer.ClickedCh:
				t.invoke(func() func() { return t.onViewer })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// invoke runs the callback selected under the read lock, outside the lock.
func (t *Tray) invoke(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// StatusChanged updates the status line and item states.
func (t *Tray) StatusChanged(st pipeline.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = st
	t.applyLocked()
}

// Display is a no-op; the tray shows no frames.
func (t *Tray) Display(*gocv.Mat) {}

// Status returns the last status received.
func (t *Tray) Status() pipeline.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Tray) applyLocked() {
	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(StatusLine(t.status))

	aff := t.status.Affordances
	setEnabled(t.menuStart, aff.Start)
	setEnabled(t.menuStop, aff.Stop)
	setEnabled(t.menuReset, aff.Reset)
	setEnabled(t.menuSnapshot, aff.Snapshot)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// StatusLine renders st as the single line shown at the top of the menu.
func StatusLine(st pipeline.Status) string {
	switch st.State {
	case pipeline.LiveRunning, pipeline.FileRunning:
		return fmt.Sprintf("● %s · %s: %d", st.Source, st.Classifier, st.Detections)
	default:
		if st.Message != "" {
			return "○ " + st.Message
		}
		return "○ Idle"
	}
}
