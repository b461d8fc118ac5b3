package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/drift/internal/prefs"
)

// PrefsRepository handles the single-row preference record. The record is
// stored as one JSONB document.
type PrefsRepository struct {
	pool *pgxpool.Pool
}

// Load retrieves the preference record. The second return value reports
// whether a record exists.
func (r *PrefsRepository) Load(ctx context.Context) (prefs.Preferences, bool, error) {
	query := `SELECT record FROM preferences WHERE id = 1`

	var p prefs.Preferences
	err := r.pool.QueryRow(ctx, query).Scan(&p)
	if errors.Is(err, pgx.ErrNoRows) {
		return prefs.Preferences{}, false, nil
	}
	if err != nil {
		return prefs.Preferences{}, false, fmt.Errorf("querying preferences: %w", err)
	}
	return p, true, nil
}

// Save writes the preference record, replacing any existing one.
func (r *PrefsRepository) Save(ctx context.Context, p prefs.Preferences) error {
	query := `
		INSERT INTO preferences (id, record)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record
	`
	if _, err := r.pool.Exec(ctx, query, p); err != nil {
		return fmt.Errorf("upserting preferences: %w", err)
	}
	return nil
}

var _ prefs.Repository = (*PrefsRepository)(nil)
