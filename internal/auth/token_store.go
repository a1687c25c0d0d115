package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"accpanel/internal/cache"
)

const refreshTokenKeyPrefix = "refresh_token:"

// StoredSession is the server-side record kept for a refresh token. It caches
// the authority set resolved at login for the lifetime of the session.
type StoredSession struct {
	UserID      uint     `json:"user_id"`
	Email       string   `json:"email"`
	Authorities []string `json:"authorities,omitempty"`
}

// TokenStoreInterface defines the interface for session token storage.
type TokenStoreInterface interface {
	StoreRefreshToken(ctx context.Context, tokenID string, session StoredSession, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (*StoredSession, error)
	DeleteRefreshToken(ctx context.Context, tokenID string) error
}

// TokenStore keeps refresh-token sessions in Redis.
type TokenStore struct {
	cache *cache.Client
}

var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

// StoreRefreshToken stores a session record with TTL.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, tokenID string, session StoredSession, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.cache.Set(ctx, refreshTokenKeyPrefix+tokenID, payload, ttl)
}

// GetRefreshToken retrieves a session record. A cache miss (including redis
// being unreachable) is reported as an error, so unknown tokens stay invalid.
func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenID string) (*StoredSession, error) {
	data, err := s.cache.Get(ctx, refreshTokenKeyPrefix+tokenID)
	if err != nil || data == nil {
		return nil, fmt.Errorf("refresh token not found")
	}
	var session StoredSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// DeleteRefreshToken removes a session record.
func (s *TokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	return s.cache.Delete(ctx, refreshTokenKeyPrefix+tokenID)
}
