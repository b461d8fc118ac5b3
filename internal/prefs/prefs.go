// Package prefs manages the persisted user preference record.
package prefs

import (
	"context"
	"fmt"
	"sync"

	"github.com/justestif/drift/internal/config"
)

const storeKey = "preferences"

// Time format values.
const (
	Format12h = "12h"
	Format24h = "24h"
)

// Preferences is the single user-configuration record. It is treated as
// immutable: updates replace the whole record after validation.
type Preferences struct {
	ClockAnimation bool   `json:"clockAnimation"`
	TimeFormat     string `json:"timeFormat"`
	WorkSeconds    int    `json:"workSeconds"`
	BreakSeconds   int    `json:"breakSeconds"`
	ShowTimer      bool   `json:"showTimer"`
	ShowTodos      bool   `json:"showTodos"`
	ShowPlayer     bool   `json:"showPlayer"`
}

// Defaults returns the built-in preference record.
func Defaults() Preferences {
	return Preferences{
		ClockAnimation: true,
		TimeFormat:     Format24h,
		WorkSeconds:    config.DefaultWorkSeconds,
		BreakSeconds:   config.DefaultBreakSeconds,
		ShowTimer:      true,
		ShowTodos:      true,
		ShowPlayer:     true,
	}
}

// Repository persists the preference record.
type Repository interface {
	Load(ctx context.Context) (Preferences, bool, error)
	Save(ctx context.Context, p Preferences) error
}

// Manager holds the current record and persists every change.
type Manager struct {
	mu      sync.Mutex
	repo    Repository
	current Preferences
}

// NewManager loads the persisted record, migrating invalid or missing
// fields to defaults rather than trusting raw persisted values. A corrupt
// document is replaced by the defaults.
func NewManager(ctx context.Context, repo Repository) (*Manager, error) {
	current := Defaults()

	loaded, ok, err := repo.Load(ctx)
	if err == nil && ok {
		current = migrate(loaded)
	}
	// Load errors (corrupt blob) fall through to defaults.

	return &Manager{repo: repo, current: current}, nil
}

// Get returns the current record.
func (m *Manager) Get() Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update validates and persists a new record. Invalid durations or time
// formats are rejected with no state change.
func (m *Manager) Update(ctx context.Context, p Preferences) (Preferences, error) {
	if err := Validate(p); err != nil {
		return m.Get(), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Save(ctx, p); err != nil {
		return m.current, fmt.Errorf("persisting preferences: %w", err)
	}
	m.current = p
	return p, nil
}

// Validate checks a record against the accepted ranges.
func Validate(p Preferences) error {
	if err := config.ValidateDuration(p.WorkSeconds); err != nil {
		return err
	}
	if err := config.ValidateDuration(p.BreakSeconds); err != nil {
		return err
	}
	if p.TimeFormat != Format12h && p.TimeFormat != Format24h {
		return fmt.Errorf("unknown time format %q", p.TimeFormat)
	}
	return nil
}

// migrate replaces out-of-range or unset fields in a loaded record with
// defaults, keeping everything else.
func migrate(p Preferences) Preferences {
	def := Defaults()
	if config.ValidateDuration(p.WorkSeconds) != nil {
		p.WorkSeconds = def.WorkSeconds
	}
	if config.ValidateDuration(p.BreakSeconds) != nil {
		p.BreakSeconds = def.BreakSeconds
	}
	if p.TimeFormat != Format12h && p.TimeFormat != Format24h {
		p.TimeFormat = def.TimeFormat
	}
	return p
}
