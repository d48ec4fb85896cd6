package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestReadConfig_FileAndDefaults(t *testing.T) {
	dir := writeConfig(t, `
database:
  host: db.internal
  user: medvault
authentication:
  encryption_key: `+testMasterKey+`
records:
  max_upload_mb: 5
`)

	cfg, err := ReadConfig(dir)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.User != "medvault" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("default port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Records.MaxUploadMB != 5 {
		t.Errorf("max upload = %d, want 5", cfg.Records.MaxUploadMB)
	}

	want := KeyCacheConfig{TTLMinutes: 30, CleanupMinutes: 10}
	if diff := cmp.Diff(want, cfg.KeyCache); diff != "" {
		t.Errorf("key cache mismatch (-want +got):\n%s", diff)
	}
}

func TestReadConfig_EnvOverride(t *testing.T) {
	dir := writeConfig(t, `
database:
  host: db.internal
authentication:
  encryption_key: `+testMasterKey+`
`)
	t.Setenv("MEDVAULT_SERVER_PORT", "9191")
	t.Setenv("MEDVAULT_DATABASE_HOST", "override.internal")

	cfg, err := ReadConfig(dir)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("server.port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Database.Host != "override.internal" {
		t.Errorf("database.host = %q", cfg.Database.Host)
	}
}

func TestReadConfig_ValidationFails(t *testing.T) {
	dir := writeConfig(t, `
database:
  host: db.internal
authentication:
  encryption_key: abcd
`)

	_, err := ReadConfig(dir)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "64 hex chars") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing key",
			cfg:     Config{Database: DatabaseConfig{Host: "x"}},
			wantErr: ErrMissingEncryptionKey,
		},
		{
			name: "missing host",
			cfg: Config{
				Authentication: AuthenticationConfig{EncryptionKey: testMasterKey},
			},
			wantErr: ErrMissingDatabaseHost,
		},
		{
			name: "ok",
			cfg: Config{
				Database:       DatabaseConfig{Host: "x"},
				Authentication: AuthenticationConfig{EncryptionKey: testMasterKey},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadClientConfig_NoFile(t *testing.T) {
	t.Setenv("MEDVAULT_CLIENT_TOKEN", "v4.local.abc")

	cfg, err := ReadClientConfig(t.TempDir())
	if err != nil {
		t.Fatalf("ReadClientConfig: %v", err)
	}
	if cfg.Client.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q", cfg.Client.BaseURL)
	}
	if cfg.Client.Token != "v4.local.abc" {
		t.Errorf("token = %q", cfg.Client.Token)
	}
}
