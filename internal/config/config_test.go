package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  name: racephotos
  user: app
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Port != 5432 || cfg.Database.MaxConns != 20 {
		t.Errorf("database defaults = %d/%d, want 5432/20", cfg.Database.Port, cfg.Database.MaxConns)
	}
	if cfg.Recognition.WorkerCount != 5 {
		t.Errorf("worker count = %d, want 5", cfg.Recognition.WorkerCount)
	}
	if cfg.Selfie.CollectionID != "selfies" || cfg.Selfie.MaxBytes != 4*1024*1024 {
		t.Errorf("selfie defaults = %q/%d", cfg.Selfie.CollectionID, cfg.Selfie.MaxBytes)
	}
	if cfg.Presign.GetExpiration != time.Hour || cfg.Presign.PutExpiration != 2*time.Hour {
		t.Errorf("presign defaults = %v/%v", cfg.Presign.GetExpiration, cfg.Presign.PutExpiration)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  host: db.internal
`)
	t.Setenv("RP_SERVER_PORT", "9443")
	t.Setenv("RP_DB_HOST", "db.override")
	t.Setenv("RP_RECOGNITION_ENDPOINT", "https://faces.override")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("server port = %d, want env override 9443", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.override" {
		t.Errorf("db host = %q, want env override", cfg.Database.Host)
	}
	if cfg.Recognition.Endpoint != "https://faces.override" {
		t.Errorf("recognition endpoint = %q, want env override", cfg.Recognition.Endpoint)
	}
}

func TestLoadToleratesRetiredKeys(t *testing.T) {
	// Older deployments may still carry keys the binary no longer reads.
	path := writeConfig(t, `
recognition:
  endpoint: https://faces.internal
  collection_prefix: event-faces
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recognition.Endpoint != "https://faces.internal" {
		t.Errorf("recognition endpoint = %q", cfg.Recognition.Endpoint)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
