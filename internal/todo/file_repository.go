package todo

import (
	"context"

	"github.com/justestif/drift/internal/store"
)

const storeKey = "todos"

// FileRepository persists the todo list as one JSON document in the file
// store. Every mutation rewrites the document wholesale.
type FileRepository struct {
	store *store.FileStore
}

// NewFileRepository creates a repository backed by the given file store.
func NewFileRepository(fs *store.FileStore) *FileRepository {
	return &FileRepository{store: fs}
}

// List reads the persisted items. A missing document is an empty list.
func (r *FileRepository) List(_ context.Context) ([]Item, error) {
	var items []Item
	if _, err := r.store.Load(storeKey, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Insert appends the item and rewrites the document.
func (r *FileRepository) Insert(ctx context.Context, item Item) error {
	items, err := r.List(ctx)
	if err != nil {
		return err
	}
	return r.store.Save(storeKey, append(items, item))
}

// SetCompleted updates one item's completed flag and rewrites the document.
func (r *FileRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	items, err := r.List(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].Completed = completed
			return r.store.Save(storeKey, items)
		}
	}
	return ErrNotFound
}

// Delete removes one item and rewrites the document.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	items, err := r.List(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			return r.store.Save(storeKey, append(items[:i], items[i+1:]...))
		}
	}
	return ErrNotFound
}

var _ Repository = (*FileRepository)(nil)
