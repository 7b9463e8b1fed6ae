// Package config loads API configuration from an optional .env file, an
// optional YAML file and environment variables, in that order of precedence
// (later sources win).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bealive/bealive-api/pkg/logger"
)

// ConfigPathEnv names the environment variable pointing at a YAML file.
const ConfigPathEnv = "BEALIVE_CONFIG"

// Storage backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the full API configuration.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Supabase  SupabaseConfig       `yaml:"supabase"`
	Database  DatabaseConfig       `yaml:"database"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	CORS      CORSConfig           `yaml:"cors"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// SupabaseConfig points at the hosted backend.
type SupabaseConfig struct {
	URL            string        `yaml:"url" env:"SUPABASE_URL"`
	AnonKey        string        `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	ServiceRoleKey string        `yaml:"service_role_key" env:"SUPABASE_SERVICE_ROLE_KEY"`
	JWTSecret      string        `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	Bucket         string        `yaml:"bucket" env:"SUPABASE_STORAGE_BUCKET"`
	Timeout        time.Duration `yaml:"timeout" env:"SUPABASE_TIMEOUT"`
	AuthTimeout    time.Duration `yaml:"auth_timeout" env:"SUPABASE_AUTH_TIMEOUT"`

	// RetryAttempts bounds tries of idempotent reads; writes are sent once.
	RetryAttempts    int           `yaml:"retry_attempts" env:"SUPABASE_RETRY_ATTEMPTS"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" env:"SUPABASE_RETRY_BASE_DELAY"`
	BreakerThreshold int           `yaml:"breaker_threshold" env:"SUPABASE_BREAKER_THRESHOLD"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" env:"SUPABASE_BREAKER_COOLDOWN"`
}

// DatabaseConfig selects and tunes the storage backend.
type DatabaseConfig struct {
	Backend         string        `yaml:"backend" env:"DATABASE_BACKEND"`
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
}

// CORSConfig lists allowed browser origins.
type CORSConfig struct {
	// AllowedOrigins is a comma separated list; "*" allows any origin.
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// Origins splits AllowedOrigins.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RateLimitConfig tunes request throttling. RedisURL switches from the
// in-process limiter to a shared one.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int           `yaml:"burst" env:"RATE_LIMIT_BURST"`
	RedisURL          string        `yaml:"redis_url" env:"RATE_LIMIT_REDIS_URL"`
	CleanupSpec       string        `yaml:"cleanup_spec" env:"RATE_LIMIT_CLEANUP_SPEC"`
	IdleTTL           time.Duration `yaml:"idle_ttl" env:"RATE_LIMIT_IDLE_TTL"`
	// TrustedProxies is a comma separated list of CIDRs or addresses whose
	// forwarding headers identify anonymous callers. Empty trusts nobody.
	TrustedProxies string `yaml:"trusted_proxies" env:"RATE_LIMIT_TRUSTED_PROXIES"`
}

// Proxies splits TrustedProxies.
func (c RateLimitConfig) Proxies() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Supabase: SupabaseConfig{
			Bucket:           "posts",
			Timeout:          30 * time.Second,
			AuthTimeout:      10 * time.Second,
			RetryAttempts:    3,
			RetryBaseDelay:   100 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Database: DatabaseConfig{
			Backend:         BackendSupabase,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		CORS: CORSConfig{AllowedOrigins: "*"},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
			CleanupSpec:       "@every 5m",
			IdleTTL:           10 * time.Minute,
		},
	}
}

// Load reads .env (if present), the YAML file named by BEALIVE_CONFIG (if
// set) and the environment, then validates the result.
func Load() (Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadUnvalidated merges every source like Load but skips validation, for
// commands that only need part of the configuration.
func LoadUnvalidated() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(ConfigPathEnv)); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile merges a YAML file into cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}
	cfg.Database.Backend = strings.ToLower(strings.TrimSpace(cfg.Database.Backend))
	return nil
}

// Validate enforces the settings each backend needs.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Database.Backend {
	case BackendSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase backend")
		}
		if c.Supabase.AnonKey == "" && c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("SUPABASE_ANON_KEY or SUPABASE_SERVICE_ROLE_KEY is required for the supabase backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		if c.Supabase.URL == "" && c.Supabase.JWTSecret == "" {
			return fmt.Errorf("SUPABASE_URL or SUPABASE_JWT_SECRET is required to verify tokens")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown database backend %q", c.Database.Backend)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests_per_second must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
