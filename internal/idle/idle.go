// Package idle tracks pointer activity and fullscreen state for the
// screensaver's transient controls.
package idle

import (
	"sync"
	"time"
)

// DefaultHideDelay is how long the controls stay visible after the last
// pointer activity.
const DefaultHideDelay = 3 * time.Second

// Monitor turns a stream of activity signals into a controls-visible flag.
// Any signal shows the controls and restarts the inactivity timer; the timer
// expiring without a new signal hides them again.
//
// Fullscreen state is mirrored from the host environment's own change
// notification, never assumed from a toggle request, since the environment
// can leave fullscreen out-of-band.
type Monitor struct {
	mu         sync.Mutex
	visible    bool
	fullscreen bool
	hideDelay  time.Duration
	timer      *time.Timer
	onChange   func(visible bool)
}

// NewMonitor creates a Monitor. A non-positive hideDelay means
// DefaultHideDelay.
func NewMonitor(hideDelay time.Duration) *Monitor {
	if hideDelay <= 0 {
		hideDelay = DefaultHideDelay
	}
	return &Monitor{hideDelay: hideDelay}
}

// OnChange installs a callback invoked whenever visibility changes.
// The callback runs without the monitor lock held.
func (m *Monitor) OnChange(fn func(visible bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Touch records pointer activity: shows the controls and restarts the
// inactivity timer.
func (m *Monitor) Touch() {
	m.mu.Lock()
	changed := !m.visible
	m.visible = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.hideDelay, m.expire)
	fn := m.onChange
	m.mu.Unlock()

	if changed && fn != nil {
		fn(true)
	}
}

// Visible reports whether the controls are currently shown.
func (m *Monitor) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// SetFullscreen records a fullscreen change reported by the environment.
func (m *Monitor) SetFullscreen(active bool) {
	m.mu.Lock()
	m.fullscreen = active
	m.mu.Unlock()
}

// Fullscreen reports the mirrored fullscreen state.
func (m *Monitor) Fullscreen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullscreen
}

// Stop cancels the pending inactivity timer.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
}

func (m *Monitor) expire() {
	m.mu.Lock()
	changed := m.visible
	m.visible = false
	fn := m.onChange
	m.mu.Unlock()

	if changed && fn != nil {
		fn(false)
	}
}
