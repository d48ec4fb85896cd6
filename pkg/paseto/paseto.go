package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

const defaultAccessTTL = 15 * time.Minute

// Custom claim names.
const (
	claimType    = "typ"
	claimUserID  = "uid"
	claimRole    = "rol"
	claimSession = "sid"
)

type Config struct {
	Mode      Mode
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	// Implicit is bound into every token without being carried in it.
	Implicit []byte
}

type Manager struct {
	cfg    Config
	parser paseto.Parser
	seal   func(*paseto.Token) (string, error)
	open   func(string) (*paseto.Token, error)
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, ErrConfig{Msg: "config mode and key mode differ"}
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, ErrConfig{Msg: "issuer and audience are required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}

	m := &Manager{cfg: cfg, parser: paseto.NewParser()}
	m.parser.AddRule(paseto.IssuedBy(cfg.Issuer))
	m.parser.AddRule(paseto.ForAudience(cfg.Audience))
	m.parser.AddRule(paseto.NotExpired())
	m.parser.AddRule(paseto.ValidAt(time.Now()))

	switch cfg.Mode {
	case ModeLocal:
		if keys.Symmetric == nil {
			return nil, ErrConfig{Msg: "missing symmetric key"}
		}
		k := *keys.Symmetric
		m.seal = func(t *paseto.Token) (string, error) { return t.V4Encrypt(k, cfg.Implicit), nil }
		m.open = func(s string) (*paseto.Token, error) { return m.parser.ParseV4Local(k, s, cfg.Implicit) }
	case ModePublic:
		if keys.Public == nil {
			return nil, ErrConfig{Msg: "missing public key"}
		}
		pk := *keys.Public
		m.open = func(s string) (*paseto.Token, error) { return m.parser.ParseV4Public(pk, s, cfg.Implicit) }
		if keys.Secret != nil {
			sk := *keys.Secret
			m.seal = func(t *paseto.Token) (string, error) { return t.V4Sign(sk, cfg.Implicit), nil }
		} else {
			m.seal = func(*paseto.Token) (string, error) { return "", ErrConfig{Msg: "verify-only manager cannot issue"} }
		}
	default:
		return nil, ErrConfig{Msg: "unknown mode " + string(cfg.Mode)}
	}
	return m, nil
}

// AccessTTL is the lifetime of tokens issued by IssueAccess.
func (m *Manager) AccessTTL() time.Duration {
	return m.cfg.AccessTTL
}

// IssueAccess issues an access token for userID acting as role. sessionID
// binds the token to a revocable session.
func (m *Manager) IssueAccess(userID uuid.UUID, role string, sessionID *uuid.UUID) (string, error) {
	now := time.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(newTokenID())
	tok.SetSubject(userID.String())
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(m.cfg.AccessTTL))

	tok.SetString(claimType, string(TokenTypeAccess))
	tok.SetString(claimUserID, userID.String())
	tok.SetString(claimRole, role)
	if sessionID != nil {
		tok.SetString(claimSession, sessionID.String())
	}

	return m.seal(&tok)
}

func (m *Manager) Verify(token string) (*Claims, error) {
	tok, err := m.open(token)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	claims, err := readClaims(tok)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	claims.Issuer, claims.Audience = m.cfg.Issuer, m.cfg.Audience
	return claims, nil
}

func newTokenID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func readClaims(tok *paseto.Token) (*Claims, error) {
	var (
		c   Claims
		err error
	)
	if c.TokenID, err = tok.GetJti(); err != nil {
		return nil, err
	}
	if c.Subject, err = tok.GetSubject(); err != nil {
		return nil, err
	}
	if c.IssuedAt, err = tok.GetIssuedAt(); err != nil {
		return nil, err
	}
	if c.ExpiresAt, err = tok.GetExpiration(); err != nil {
		return nil, err
	}

	typ, err := tok.GetString(claimType)
	if err != nil {
		return nil, err
	}
	c.Type = TokenType(typ)

	if c.Role, err = tok.GetString(claimRole); err != nil {
		return nil, err
	}

	uid, err := tok.GetString(claimUserID)
	if err != nil {
		return nil, err
	}
	if c.UserID, err = uuid.Parse(uid); err != nil {
		return nil, fmt.Errorf("%s claim: %w", claimUserID, err)
	}

	if sid, err := tok.GetString(claimSession); err == nil {
		id, err := uuid.Parse(sid)
		if err != nil {
			return nil, fmt.Errorf("%s claim: %w", claimSession, err)
		}
		c.SessionID = &id
	}
	return &c, nil
}
