package idle

import (
	"testing"
	"time"
)

func TestMonitor_TouchShowsControls(t *testing.T) {
	m := NewMonitor(50 * time.Millisecond)
	defer m.Stop()

	if m.Visible() {
		t.Fatal("Visible() = true before any activity, want false")
	}

	m.Touch()
	if !m.Visible() {
		t.Error("Visible() = false after Touch, want true")
	}
}

func TestMonitor_HidesAfterInactivity(t *testing.T) {
	m := NewMonitor(20 * time.Millisecond)
	defer m.Stop()

	hidden := make(chan bool, 1)
	m.OnChange(func(visible bool) {
		if !visible {
			hidden <- true
		}
	})

	m.Touch()

	select {
	case <-hidden:
	case <-time.After(time.Second):
		t.Fatal("controls never hidden after inactivity")
	}
	if m.Visible() {
		t.Error("Visible() = true after inactivity expiry, want false")
	}
}

func TestMonitor_TouchRestartsTimer(t *testing.T) {
	m := NewMonitor(60 * time.Millisecond)
	defer m.Stop()

	m.Touch()
	time.Sleep(40 * time.Millisecond)
	m.Touch() // restart before expiry
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first touch, but only 40ms after the second.
	if !m.Visible() {
		t.Error("Visible() = false, want true after timer restart")
	}
}

func TestMonitor_FullscreenMirror(t *testing.T) {
	m := NewMonitor(0)
	defer m.Stop()

	if m.Fullscreen() {
		t.Fatal("Fullscreen() = true initially, want false")
	}

	m.SetFullscreen(true)
	if !m.Fullscreen() {
		t.Error("Fullscreen() = false after SetFullscreen(true)")
	}

	// Out-of-band exit (e.g. user pressed Escape) reported by the
	// environment's change notification.
	m.SetFullscreen(false)
	if m.Fullscreen() {
		t.Error("Fullscreen() = true after SetFullscreen(false)")
	}
}
