package pasetotoken

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const TokenTypeAccess TokenType = "access"

// Claims is what Verify hands back to the HTTP layer. It satisfies
// reqctx.AuthClaims.
type Claims struct {
	Type      TokenType
	UserID    uuid.UUID
	SessionID *uuid.UUID
	Role      string

	Issuer   string
	Audience string
	Subject  string
	TokenID  string

	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *Claims) GetUserID() uuid.UUID     { return c.UserID }
func (c *Claims) GetSessionID() *uuid.UUID { return c.SessionID }
func (c *Claims) GetTokenType() string     { return string(c.Type) }
func (c *Claims) GetRole() string          { return c.Role }

func (c *Claims) IsExpired() bool {
	return !c.ExpiresAt.After(time.Now())
}

// Remaining is the time left before expiry, zero once expired.
func (c *Claims) Remaining() time.Duration {
	if d := time.Until(c.ExpiresAt); d > 0 {
		return d
	}
	return 0
}
