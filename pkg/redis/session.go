package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found or expired")

const sessionPrefix = "medvault:session:"

func sessionKey(id uuid.UUID) string {
	return sessionPrefix + id.String()
}

// Sessions tracks issued access tokens by session id so a token can be
// invalidated before it expires.
type Sessions struct {
	rdb goredis.Cmdable
}

func NewSessions(rdb goredis.Cmdable) *Sessions {
	return &Sessions{rdb: rdb}
}

// Create stores a new session for userID and returns its id.
func (s *Sessions) Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.rdb.Set(ctx, sessionKey(id), userID.String(), ttl).Err(); err != nil {
		return uuid.Nil, fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

// Verify checks the session exists and belongs to userID.
func (s *Sessions) Verify(ctx context.Context, sessionID, userID uuid.UUID) error {
	owner, err := s.rdb.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}
	if owner != userID.String() {
		return ErrSessionNotFound
	}
	return nil
}

// Revoke deletes the session. Revoking an unknown session is not an error.
func (s *Sessions) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
