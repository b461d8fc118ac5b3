package prefs

import (
	"context"

	"github.com/justestif/drift/internal/store"
)

// FileRepository persists the preference record in the file store.
type FileRepository struct {
	store *store.FileStore
}

// NewFileRepository creates a repository backed by the given file store.
func NewFileRepository(fs *store.FileStore) *FileRepository {
	return &FileRepository{store: fs}
}

// Load reads the persisted record.
func (r *FileRepository) Load(_ context.Context) (Preferences, bool, error) {
	var p Preferences
	ok, err := r.store.Load(storeKey, &p)
	return p, ok, err
}

// Save writes the record.
func (r *FileRepository) Save(_ context.Context, p Preferences) error {
	return r.store.Save(storeKey, p)
}

var _ Repository = (*FileRepository)(nil)
