package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/paymock/config"
	"github.com/rs/zerolog"
)

func TestHolder_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paymock.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	defer h.Stop()

	var notified *config.Config
	h.OnChange(func(cfg *config.Config) { notified = cfg })

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got := h.Get().Logging.Level; got != "debug" {
		t.Errorf("level after reload = %q, want debug", got)
	}
	if notified == nil || notified.Logging.Level != "debug" {
		t.Error("on-change callback not invoked with new config")
	}
}

func TestHolder_ReloadKeepsOldConfigOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paymock.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("database:\n  driver: cassandra\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatal("reload accepted invalid config")
	}

	if got := h.Get().Logging.Level; got != "info" {
		t.Errorf("level after failed reload = %q, want old value kept", got)
	}
}
