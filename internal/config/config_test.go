package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "coalmine.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auth:\n  key: hunter2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Address != "127.0.0.1:8080" {
		t.Fatalf("expected default listen address, got %q", cfg.Listen.Address)
	}
	if cfg.Store.Driver != "memory" {
		t.Fatalf("expected default store driver, got %q", cfg.Store.Driver)
	}
}

func TestLoadExpandsEnvDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auth:\n  key: ${COALMINE_TEST_KEY:-fallback}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Key != "fallback" {
		t.Fatalf("expected fallback expansion, got %q", cfg.Auth.Key)
	}
}

func TestLoadRequiredEnvMissingFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auth:\n  key: ${COALMINE_TEST_REQUIRED:?must be set}\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing required env var")
	}
}

func TestStoreDSNEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "store:\n  driver: memory\n")
	t.Setenv("COALMINE_STORE_DSN", filepath.Join(dir, "canaries.db"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("expected env override to force sqlite driver, got %q", cfg.Store.Driver)
	}
}

func TestValidateRejectsHalfSetSMTPCreds(t *testing.T) {
	cfg := Default()
	cfg.Auth.Key = "k"
	cfg.SMTP.User = "bob"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for half-set smtp credentials")
	}
}

func TestValidateRejectsNeitherProcessMode(t *testing.T) {
	cfg := Default()
	cfg.Process.Web = false
	cfg.Process.Background = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when neither process mode is enabled")
	}
}
