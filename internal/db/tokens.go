package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"

	"github.com/justestif/drift/internal/session"
)

// TokenRepository handles the single persisted OAuth token pair.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// Load retrieves the token pair. Returns (nil, nil) when none is stored.
func (r *TokenRepository) Load(ctx context.Context) (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expiry
		FROM spotify_tokens
		WHERE id = 1
	`
	var token oauth2.Token
	err := r.pool.QueryRow(ctx, query).Scan(
		&token.AccessToken,
		&token.RefreshToken,
		&token.TokenType,
		&token.Expiry,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return &token, nil
}

// Save writes the token pair, replacing any existing one.
func (r *TokenRepository) Save(ctx context.Context, token *oauth2.Token) error {
	query := `
		INSERT INTO spotify_tokens (id, access_token, refresh_token, token_type, expiry)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry
	`
	_, err := r.pool.Exec(ctx, query, token.AccessToken, token.RefreshToken, token.TokenType, token.Expiry)
	if err != nil {
		return fmt.Errorf("upserting token: %w", err)
	}
	return nil
}

// Delete removes the stored token pair. Deleting a missing row is not an
// error.
func (r *TokenRepository) Delete(ctx context.Context) error {
	query := `DELETE FROM spotify_tokens WHERE id = 1`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

var _ session.TokenRepository = (*TokenRepository)(nil)
