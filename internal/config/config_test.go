package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 30s", cfg.Server.WriteTimeout)
	}
	if !cfg.Identity.Enabled() {
		t.Error("Identity.Enabled() = false, want true")
	}
	if len(cfg.Identity.Algorithms) != 2 {
		t.Errorf("Identity.Algorithms = %v, want 2 entries", cfg.Identity.Algorithms)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.DSNEnv != "TRIPS_DSN" || !cfg.Store.AutoMigrate {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Idempotency.Store.Driver != DriverRedis || cfg.Idempotency.Store.DefaultTTL != 12*time.Hour {
		t.Errorf("Idempotency.Store = %+v", cfg.Idempotency.Store)
	}
	if cfg.LinkHealth.Timeout != 3*time.Second || cfg.LinkHealth.MaxConcurrency != 8 || cfg.LinkHealth.MaxTargets != 20 {
		t.Errorf("LinkHealth = %+v", cfg.LinkHealth)
	}
	if cfg.LinkHealth.UserAgent != "tripflow-linkcheck/1.0" {
		t.Errorf("LinkHealth.UserAgent = %q, want default", cfg.LinkHealth.UserAgent)
	}
	if cfg.Engine.Model != "planner-large" || len(cfg.Engine.PromptVersions) != 2 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Exporter != "stdout" {
		t.Errorf("Tracing = %+v", cfg.Observability.Tracing)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_empty_path_uses_defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Identity.Enabled() {
		t.Error("identity should be disabled by default")
	}
}

func TestLoad_invalid_reports_every_problem(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	if err == nil {
		t.Fatal("Load() with invalid config should return error")
	}

	for _, want := range []string{
		"server.port",
		"identity.jwks_url",
		"identity.audience",
		`store.driver "sqlite"`,
		"link_health.max_concurrency",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Idempotency.Store.DefaultTTL != 24*time.Hour {
		t.Errorf("default Idempotency TTL = %v, want 24h", cfg.Idempotency.Store.DefaultTTL)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults().Validate() = %v, want nil", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRIPFLOW_SERVER_PORT", "3000")
	t.Setenv("TRIPFLOW_IDENTITY_AUDIENCE", "env-audience")
	t.Setenv("TRIPFLOW_STORE_DRIVER", "redis")
	t.Setenv("TRIPFLOW_LINK_HEALTH_TIMEOUT", "750ms")
	t.Setenv("TRIPFLOW_ENGINE_PROFILE", "fast")
	t.Setenv("TRIPFLOW_OBSERVABILITY_LOG_LEVEL", "error")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Identity.Audience != "env-audience" {
		t.Errorf("Identity.Audience = %q, want env override", cfg.Identity.Audience)
	}
	if cfg.Store.Driver != DriverRedis {
		t.Errorf("Store.Driver = %q, want redis (env override)", cfg.Store.Driver)
	}
	if cfg.LinkHealth.Timeout != 750*time.Millisecond {
		t.Errorf("LinkHealth.Timeout = %v, want 750ms", cfg.LinkHealth.Timeout)
	}
	if cfg.Engine.Profile != "fast" {
		t.Errorf("Engine.Profile = %q, want fast", cfg.Engine.Profile)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
}

func TestValidate_invalid_port(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with port 0 should return error")
	}
}

func TestValidate_idempotency_driver(t *testing.T) {
	cfg := Defaults()
	cfg.Idempotency.Store.Driver = DriverPostgres

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "idempotency.store.driver") {
		t.Fatalf("Validate() = %v, want idempotency driver error", err)
	}

	cfg.Idempotency.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled idempotency should skip driver checks, got %v", err)
	}
}
