// Package todo implements the persisted task list.
package todo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	// ErrEmptyText is returned when adding a blank or whitespace-only task.
	// The store is left unchanged.
	ErrEmptyText = errors.New("todo text is empty")

	// ErrNotFound is returned for an unknown item id.
	ErrNotFound = errors.New("todo item not found")
)

// Item is a single task record.
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository persists todo items. Implementations exist for the file store
// (this package) and Postgres (internal/db).
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	Insert(ctx context.Context, item Item) error
	SetCompleted(ctx context.Context, id string, completed bool) error
	Delete(ctx context.Context, id string) error
}

// Store is the todo list with an in-memory working copy persisted through a
// Repository after every mutation. Insertion order is preserved.
type Store struct {
	mu    sync.Mutex
	repo  Repository
	items []Item
}

// NewStore loads the persisted list and returns a ready store.
func NewStore(ctx context.Context, repo Repository) (*Store, error) {
	items, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading todos: %w", err)
	}
	return &Store{repo: repo, items: items}, nil
}

// Add appends a new pending item with a fresh id and the current timestamp,
// persisting immediately. Blank or whitespace-only text is rejected with
// ErrEmptyText and no state change.
func (s *Store) Add(ctx context.Context, text string) (Item, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Item{}, ErrEmptyText
	}

	item := Item{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Insert(ctx, item); err != nil {
		return Item{}, fmt.Errorf("persisting todo: %w", err)
	}
	s.items = append(s.items, item)
	return item, nil
}

// Toggle flips the completed flag of the item with the given id and persists.
func (s *Store) Toggle(ctx context.Context, id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		next := !s.items[i].Completed
		if err := s.repo.SetCompleted(ctx, id, next); err != nil {
			return Item{}, fmt.Errorf("persisting todo: %w", err)
		}
		s.items[i].Completed = next
		return s.items[i], nil
	}
	return Item{}, ErrNotFound
}

// Remove deletes the item with the given id and persists.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("persisting todo: %w", err)
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		return nil
	}
	return ErrNotFound
}

// Pending returns uncompleted items in insertion order.
func (s *Store) Pending() []Item {
	return s.filter(false)
}

// Completed returns completed items in insertion order. Any display cap is
// a presentation concern, not applied here.
func (s *Store) Completed() []Item {
	return s.filter(true)
}

// Len returns the total item count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) filter(completed bool) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if item.Completed == completed {
			out = append(out, item)
		}
	}
	return out
}
