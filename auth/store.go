package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/habedi/gymctl/db"
)

// RepoTokenStore adapts db.TokenRepository to TokenStore.
type RepoTokenStore struct {
	repo db.TokenRepository
}

// NewRepoTokenStore creates a TokenStore backed by repo.
func NewRepoTokenStore(repo db.TokenRepository) *RepoTokenStore {
	return &RepoTokenStore{repo: repo}
}

// Get returns the stored pair, or an empty pair when nothing is stored.
func (s *RepoTokenStore) Get(ctx context.Context) (TokenPair, error) {
	tok, err := s.repo.Get(ctx)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to retrieve token record: %w", err)
	}
	if tok == nil {
		return TokenPair{}, nil
	}
	return TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// Save persists pair. The expiry column follows the access token's exp claim.
func (s *RepoTokenStore) Save(ctx context.Context, pair TokenPair) error {
	tok := &db.Token{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	if exp, ok := AccessTokenExpiry(pair.AccessToken); ok {
		tok.ExpiresAt = exp.UTC().Format(time.RFC3339)
	}
	if err := s.repo.Upsert(ctx, tok); err != nil {
		return fmt.Errorf("failed to save token record: %w", err)
	}
	return nil
}

// Clear removes the stored pair.
func (s *RepoTokenStore) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear token record: %w", err)
	}
	return nil
}
