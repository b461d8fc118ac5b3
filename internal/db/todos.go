package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/drift/internal/todo"
)

// TodoRepository handles todo item database operations.
type TodoRepository struct {
	pool *pgxpool.Pool
}

// List retrieves all items in insertion order.
func (r *TodoRepository) List(ctx context.Context) ([]todo.Item, error) {
	query := `
		SELECT id, text, completed, created_at
		FROM todos
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}
	defer rows.Close()

	items := []todo.Item{}
	for rows.Next() {
		var item todo.Item
		if err := rows.Scan(
			&item.ID,
			&item.Text,
			&item.Completed,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning todo: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Insert adds a new item.
func (r *TodoRepository) Insert(ctx context.Context, item todo.Item) error {
	query := `
		INSERT INTO todos (id, text, completed, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, item.ID, item.Text, item.Completed, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting todo: %w", err)
	}
	return nil
}

// SetCompleted updates an item's completed flag.
func (r *TodoRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	query := `UPDATE todos SET completed = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, completed)
	if err != nil {
		return fmt.Errorf("updating todo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return todo.ErrNotFound
	}
	return nil
}

// Delete removes an item by ID.
func (r *TodoRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM todos WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return todo.ErrNotFound
	}
	return nil
}

var _ todo.Repository = (*TodoRepository)(nil)
