package pasetotoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newManager(t *testing.T, keys Keys, ttl time.Duration) *Manager {
	t.Helper()
	m, err := New(Config{Mode: keys.Mode, Issuer: "medvault", Audience: "medvault-api", AccessTTL: ttl}, keys)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	for _, keys := range []Keys{NewLocalKeys(), NewPublicKeys()} {
		t.Run(string(keys.Mode), func(t *testing.T) {
			m := newManager(t, keys, time.Hour)
			userID, sessionID := uuid.New(), uuid.New()

			tok, err := m.IssueAccess(userID, "doctor", &sessionID)
			if err != nil {
				t.Fatalf("IssueAccess: %v", err)
			}
			if !strings.HasPrefix(tok, "v4."+string(keys.Mode)+".") {
				t.Errorf("token prefix = %q", tok[:10])
			}

			claims, err := m.Verify(tok)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if claims.UserID != userID || claims.Role != "doctor" || claims.Type != TokenTypeAccess {
				t.Errorf("claims = %+v", claims)
			}
			if claims.SessionID == nil || *claims.SessionID != sessionID {
				t.Errorf("session = %v", claims.SessionID)
			}
			if claims.IsExpired() {
				t.Error("fresh token reported expired")
			}
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	m := newManager(t, NewLocalKeys(), time.Hour)
	other := newManager(t, NewLocalKeys(), time.Hour)

	tok, err := other.IssueAccess(uuid.New(), "patient", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	_, err = m.Verify(tok)
	var invalid ErrInvalidToken
	if !errors.As(err, &invalid) {
		t.Errorf("foreign key: err = %v, want ErrInvalidToken", err)
	}

	if _, err := m.Verify("v4.local.garbage"); !errors.As(err, &invalid) {
		t.Errorf("garbage: err = %v, want ErrInvalidToken", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Mode: ModePublic, Issuer: "i", Audience: "a"}, NewLocalKeys()); err == nil {
		t.Error("expected mode mismatch error")
	}
	if _, err := New(Config{Mode: ModeLocal, Audience: "a"}, NewLocalKeys()); err == nil {
		t.Error("expected missing issuer error")
	}
	if _, err := LoadKeys(KeyStrings{Mode: ModeLocal}); err == nil {
		t.Error("expected missing key error")
	}
}

func TestVerifyOnlyManager(t *testing.T) {
	signer := NewPublicKeys()
	issuer := newManager(t, signer, time.Minute)
	verifier := newManager(t, Keys{Mode: ModePublic, Public: signer.Public}, time.Minute)

	tok, err := issuer.IssueAccess(uuid.New(), "patient", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := verifier.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SessionID != nil {
		t.Errorf("session = %v, want nil", claims.SessionID)
	}
	if claims.Remaining() <= 0 || claims.Remaining() > time.Minute {
		t.Errorf("remaining = %v", claims.Remaining())
	}

	var cfgErr ErrConfig
	if _, err := verifier.IssueAccess(uuid.New(), "patient", nil); !errors.As(err, &cfgErr) {
		t.Errorf("verify-only issue: err = %v, want ErrConfig", err)
	}
}
