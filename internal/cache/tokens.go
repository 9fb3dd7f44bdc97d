package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedKeyPrefix      = "auth:revoked:%s"
	verificationKeyPrefix = "auth:verify:%s"
	oauthStateKeyPrefix   = "auth:oauth_state:%s"
)

// ErrTokenNotFound is returned when a one-time token is unknown or already used.
var ErrTokenNotFound = errors.New("token not found or expired")

// TokenStore keeps revocations, email verification tokens and OAuth states in Redis.
type TokenStore struct {
	rdb *redis.Client
}

// NewTokenStore wraps rdb.
func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// Revoke marks a token id as signed out until it would have expired anyway.
func (s *TokenStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, fmt.Sprintf(revokedKeyPrefix, jti), 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (s *TokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, fmt.Sprintf(revokedKeyPrefix, jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveVerificationToken binds token to userID for ttl.
func (s *TokenStore) SaveVerificationToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, fmt.Sprintf(verificationKeyPrefix, token), userID, ttl).Err()
}

// ConsumeVerificationToken returns the bound user id and deletes the token.
func (s *TokenStore) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, fmt.Sprintf(verificationKeyPrefix, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// SaveOAuthState remembers an OAuth state value for ttl.
func (s *TokenStore) SaveOAuthState(ctx context.Context, state string, ttl time.Duration) error {
	return s.rdb.Set(ctx, fmt.Sprintf(oauthStateKeyPrefix, state), 1, ttl).Err()
}

// ConsumeOAuthState deletes state and reports whether it was known.
func (s *TokenStore) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	n, err := s.rdb.Del(ctx, fmt.Sprintf(oauthStateKeyPrefix, state)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
