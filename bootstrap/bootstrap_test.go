package bootstrap_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/paymock/adapters/clock"
	"github.com/artpar/paymock/bootstrap"
	"github.com/artpar/paymock/config"
	"github.com/artpar/paymock/domain/chaos"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Database: config.DatabaseConfig{Driver: "memory"},
		Clock:    config.ClockConfig{Mode: "real", Multiplier: 1},
		Logging:  config.LoggingConfig{Level: "error", Format: "json"},
	}
}

func TestNew_MemoryDriver(t *testing.T) {
	a, err := bootstrap.New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	if a.DB != nil {
		t.Error("memory driver should not open a database")
	}

	// The wired handler serves the API.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	a.HTTPServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/customers", nil)
	a.HTTPServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("list customers status = %d, want 200", rec.Code)
	}
}

func TestNew_SQLiteDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Database = config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "paymock.db"),
	}

	a, err := bootstrap.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	if a.DB == nil {
		t.Fatal("sqlite driver should open a database")
	}
}

func TestNew_AppliesClockAndChaosConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Clock = config.ClockConfig{Mode: "manual", StartAt: 1_700_000_000}
	rate := 0.5
	cfg.Chaos = chaos.Update{Payment: &chaos.PaymentUpdate{FailureRate: &rate}}

	a, err := bootstrap.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown()

	if a.Clock.Mode() != clock.ModeManual {
		t.Errorf("clock mode = %q, want manual", a.Clock.Mode())
	}
	if got := a.Clock.Now().Unix(); got != 1_700_000_000 {
		t.Errorf("clock now = %d, want configured start", got)
	}
	if got := a.Chaos.Config().Payment.FailureRate; got != 0.5 {
		t.Errorf("failure rate = %v, want 0.5", got)
	}
}

func TestNew_RejectsBadChaosConfig(t *testing.T) {
	cfg := testConfig()
	rate := 7.0
	cfg.Chaos = chaos.Update{Payment: &chaos.PaymentUpdate{FailureRate: &rate}}

	if _, err := bootstrap.New(cfg); err == nil {
		t.Fatal("expected error for out-of-range failure rate")
	}
}
