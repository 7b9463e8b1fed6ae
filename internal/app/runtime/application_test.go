package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bealive/bealive-api/internal/config"
	"github.com/bealive/bealive-api/pkg/testutil"
)

func memoryConfig() config.Config {
	cfg := config.Default()
	cfg.Database.Backend = config.BackendMemory
	cfg.Supabase.JWTSecret = "runtime-secret"
	cfg.Logging.Level = "error"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

func TestMemoryApplicationServesRequests(t *testing.T) {
	app, err := NewApplication(memoryConfig())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Fatal("trace header missing")
	}

	token, err := testutil.Token("runtime-secret", "11111111-1111-4111-8111-111111111111", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: %d %s", rec.Code, rec.Body.String())
	}
	var summary map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary["user_id"] != "11111111-1111-4111-8111-111111111111" {
		t.Fatalf("summary %v", summary)
	}
}

func TestPreflightIsAnsweredBeforeRouting(t *testing.T) {
	app, err := NewApplication(memoryConfig())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/posts/1/media", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: %d", rec.Code)
	}
}

func TestRunAndShutdown(t *testing.T) {
	app, err := NewApplication(memoryConfig())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSupabaseBackendRequiresClient(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Backend = config.BackendSupabase
	if _, err := NewApplication(cfg); err == nil {
		t.Fatal("expected error without supabase settings")
	}
}
