package session

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/justestif/drift/internal/store"
)

const tokenKey = "spotify_token"

// FileTokenRepository persists the token pair in the file store.
type FileTokenRepository struct {
	store *store.FileStore
}

// NewFileTokenRepository creates a repository backed by the given file store.
func NewFileTokenRepository(fs *store.FileStore) *FileTokenRepository {
	return &FileTokenRepository{store: fs}
}

// Load reads the persisted token pair. Returns (nil, nil) when absent.
func (r *FileTokenRepository) Load(_ context.Context) (*oauth2.Token, error) {
	var token oauth2.Token
	ok, err := r.store.Load(tokenKey, &token)
	if err != nil || !ok {
		return nil, err
	}
	return &token, nil
}

// Save writes the token pair.
func (r *FileTokenRepository) Save(_ context.Context, token *oauth2.Token) error {
	return r.store.Save(tokenKey, token)
}

// Delete removes the persisted token pair.
func (r *FileTokenRepository) Delete(_ context.Context) error {
	return r.store.Delete(tokenKey)
}

var _ TokenRepository = (*FileTokenRepository)(nil)
