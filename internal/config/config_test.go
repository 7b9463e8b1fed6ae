package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMemoryBackendIsValid(t *testing.T) {
	cfg := Default()
	cfg.Database.Backend = BackendMemory
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Fatalf("addr %s", cfg.Server.Addr())
	}
}

func TestValidateBackendRequirements(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("supabase backend without URL should fail")
	}

	cfg.Supabase.URL = "https://project.supabase.co"
	cfg.Supabase.AnonKey = "anon"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	cfg.Database.Backend = BackendPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres backend without DSN should fail")
	}
	cfg.Database.DSN = "postgres://localhost/bealive"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	cfg.Database.Backend = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: 9000
database:
  backend: memory
cors:
  allowed_origins: "https://a.example, https://b.example"
rate_limit:
  enabled: true
  requests_per_second: 5
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv(ConfigPathEnv, path)
	t.Setenv("PORT", "9100")
	t.Setenv("SUPABASE_TIMEOUT", "5s")
	t.Setenv("SUPABASE_RETRY_ATTEMPTS", "1")
	t.Setenv("SUPABASE_BREAKER_COOLDOWN", "1m")
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("port %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Database.Backend != BackendMemory {
		t.Fatalf("backend %q", cfg.Database.Backend)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 {
		t.Fatalf("rps %v", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Supabase.Timeout != 5*time.Second {
		t.Fatalf("timeout %v", cfg.Supabase.Timeout)
	}
	if cfg.Supabase.RetryAttempts != 1 || cfg.Supabase.BreakerCooldown != time.Minute {
		t.Fatalf("gateway tuning %+v", cfg.Supabase)
	}
	if cfg.Supabase.BreakerThreshold != 5 {
		t.Fatalf("breaker threshold default lost: %d", cfg.Supabase.BreakerThreshold)
	}
	if got := cfg.CORS.Origins(); len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("origins %v", got)
	}
	if got := cfg.RateLimit.Proxies(); len(got) != 2 || got[0] != "10.0.0.0/8" || got[1] != "192.0.2.7" {
		t.Fatalf("trusted proxies %v", got)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("defaults should survive: %v", cfg.Server.ReadTimeout)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Fatal("expected missing file error")
	}
}
