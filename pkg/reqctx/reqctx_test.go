package reqctx

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type claims struct {
	id   uuid.UUID
	role string
	exp  time.Time
}

func (c claims) GetUserID() uuid.UUID     { return c.id }
func (c claims) GetSessionID() *uuid.UUID { return nil }
func (c claims) GetTokenType() string     { return "access" }
func (c claims) GetRole() string          { return c.role }
func (c claims) IsExpired() bool          { return time.Now().After(c.exp) }

func TestClaims(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsAuthenticated(ctx))
	_, ok := UserIDFromContext(ctx)
	assert.False(t, ok)
	_, ok = RoleFromContext(ctx)
	assert.False(t, ok)

	id := uuid.New()
	ctx = WithClaims(ctx, claims{id: id, role: "doctor", exp: time.Now().Add(time.Minute)})
	assert.True(t, IsAuthenticated(ctx))

	got, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	role, _ := RoleFromContext(ctx)
	assert.Equal(t, "doctor", role)

	expired := WithClaims(context.Background(), claims{id: id, exp: time.Now().Add(-time.Minute)})
	assert.False(t, IsAuthenticated(expired))
}

func TestRequestMeta(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := WithRequestMeta(context.Background(), &RequestMeta{RequestID: "abc"})
	assert.Equal(t, "abc", RequestIDFromContext(ctx))

	var nilMeta *RequestMeta
	_, ok := RequestMetaFromContext(WithRequestMeta(context.Background(), nilMeta))
	assert.False(t, ok)
}

func TestLogAttrs(t *testing.T) {
	assert.Empty(t, LogAttrs(context.Background()))

	id := uuid.New()
	ctx := WithRequestMeta(context.Background(), &RequestMeta{RequestID: "req-1"})
	ctx = WithClaims(ctx, claims{id: id, role: "patient", exp: time.Now().Add(time.Minute)})

	assert.Equal(t, []any{"request_id", "req-1", "user_id", id.String(), "role", "patient"}, LogAttrs(ctx))
}
