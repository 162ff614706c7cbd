// Package tray provides the system tray trigger for one-shot sampling.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray menu: Sample, Pause and Quit plus a
// read-only line showing the last dispatched label.
type Tray struct {
	onSample func()
	onPause  func(paused bool)
	onQuit   func()
	paused   bool
	lastText string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuSample    *systray.MenuItem
	menuPause     *systray.MenuItem
	menuLastLabel *systray.MenuItem
}

// New creates a new Tray instance in the running (unpaused) state.
func New() *Tray {
	return &Tray{}
}

// OnSample sets the callback invoked when the Sample item is clicked.
func (t *Tray) OnSample(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSample = fn
}

// OnPause sets the callback invoked when the Pause item is toggled.
func (t *Tray) OnPause(fn func(paused bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPause = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, e.g. on SIGINT.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("JD")
	systray.SetTooltip("JD Emotion")

	t.mu.Lock()
	t.menuSample = systray.AddMenuItem("Sample", "Capture a short window and send the result")
	t.menuPause = systray.AddMenuItem(pauseTitle(t.paused), "Pause frame processing")
	systray.AddSeparator()

	t.menuLastLabel = systray.AddMenuItem(lastTitle(t.lastText), "Last label sent to the robot")
	t.menuLastLabel.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit JD Emotion")

	go func() {
		for {
			select {
			case <-t.menuSample.ClickedCh:
				t.handleSample()
			case <-t.menuPause.ClickedCh:
				t.handlePause()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleSample() {
	t.mu.RLock()
	callback := t.onSample
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handlePause() {
	paused := t.toggle()

	t.mu.RLock()
	callback := t.onPause
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(paused)
	}
}

// toggle flips the paused state and refreshes the menu title.
func (t *Tray) toggle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.paused = !t.paused
	if t.menuPause != nil {
		t.menuPause.SetTitle(pauseTitle(t.paused))
	}
	return t.paused
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastLabel updates the last label display in the menu.
func (t *Tray) SetLastLabel(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastText = text
	if t.menuLastLabel != nil {
		t.menuLastLabel.SetTitle(lastTitle(text))
	}
}

// LastLabel returns the text shown on the last label line.
func (t *Tray) LastLabel() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lastTitle(t.lastText)
}

// IsPaused returns the current paused state.
func (t *Tray) IsPaused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

func pauseTitle(paused bool) string {
	if paused {
		return "○ Paused"
	}
	return "● Running"
}

func lastTitle(text string) string {
	if text == "" {
		return "Last: none"
	}
	return "Last: " + text
}
