package vaultclient

import (
	"time"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/pkg/keycache"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// KeyTTL bounds how long an opened record key stays in the session cache.
	KeyTTL     time.Duration
	KeyCleanup time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8080",
		Timeout:    30 * time.Second,
		KeyTTL:     keycache.DefaultTTL,
		KeyCleanup: keycache.DefaultCleanup,
	}
}

func FromCentralConfig(c config.ClientConfig, kc config.KeyCacheConfig) Config {
	out := DefaultConfig()
	if c.BaseURL != "" {
		out.BaseURL = c.BaseURL
	}
	out.Token = c.Token
	if c.TimeoutSeconds > 0 {
		out.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if kc.TTLMinutes > 0 {
		out.KeyTTL = time.Duration(kc.TTLMinutes) * time.Minute
	}
	if kc.CleanupMinutes > 0 {
		out.KeyCleanup = time.Duration(kc.CleanupMinutes) * time.Minute
	}
	return out
}
