// Package runtime wires configuration, stores, services and the HTTP server
// into a runnable application.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/bealive/bealive-api/infra/supabase"
	"github.com/bealive/bealive-api/internal/app/httpapi"
	"github.com/bealive/bealive-api/internal/app/metrics"
	"github.com/bealive/bealive-api/internal/app/services/aggregates"
	"github.com/bealive/bealive-api/internal/app/services/challenges"
	"github.com/bealive/bealive-api/internal/app/services/commitments"
	"github.com/bealive/bealive-api/internal/app/services/network"
	"github.com/bealive/bealive-api/internal/app/services/posts"
	"github.com/bealive/bealive-api/internal/app/services/profiles"
	"github.com/bealive/bealive-api/internal/app/services/uploads"
	"github.com/bealive/bealive-api/internal/app/storage"
	"github.com/bealive/bealive-api/internal/app/storage/memory"
	"github.com/bealive/bealive-api/internal/app/storage/postgres"
	supabasestore "github.com/bealive/bealive-api/internal/app/storage/supabase"
	"github.com/bealive/bealive-api/internal/app/system"
	"github.com/bealive/bealive-api/internal/config"
	"github.com/bealive/bealive-api/internal/middleware"
	"github.com/bealive/bealive-api/pkg/logger"
)

// Version is reported by GET / and the version command.
var Version = "dev"

// Stores groups every persistence dependency of the services.
type Stores struct {
	Challenges  storage.ChallengeStore
	Commitments storage.CommitmentStore
	Stats       storage.StatsStore
	Posts       storage.PostStore
	Connections storage.ConnectionStore
	Profiles    storage.ProfileStore
	Objects     storage.ObjectStore
}

func storesFrom(s interface {
	storage.ChallengeStore
	storage.CommitmentStore
	storage.StatsStore
	storage.PostStore
	storage.ConnectionStore
	storage.ProfileStore
}, objects storage.ObjectStore) Stores {
	return Stores{
		Challenges:  s,
		Commitments: s,
		Stats:       s,
		Posts:       s,
		Connections: s,
		Profiles:    s,
		Objects:     objects,
	}
}

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        config.Config
	log        *logger.Logger
	httpServer *http.Server
	handler    http.Handler
	manager    *system.Manager
	db         *sql.DB
	redis      *redis.Client
}

// NewApplication builds the application for cfg.
func NewApplication(cfg config.Config) (*Application, error) {
	log := logger.New(cfg.Logging).Named("bealive-api")

	var client *supabase.Client
	if cfg.Supabase.URL != "" && (cfg.Supabase.AnonKey != "" || cfg.Supabase.ServiceRoleKey != "") {
		c, err := newSupabaseClient(cfg.Supabase)
		if err != nil {
			return nil, fmt.Errorf("configure supabase: %w", err)
		}
		client = c
	}

	app := &Application{cfg: cfg, log: log, manager: system.NewManager(log.Named("system"))}
	stores, err := app.buildStores(client)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	var users middleware.UserLookup
	if client != nil {
		users = client
	}
	verifier := middleware.NewSupabaseVerifier(cfg.Supabase.JWTSecret, users, log.Named("auth"))

	proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.Proxies())
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("configure rate limit: %w", err)
	}

	cron := system.NewCronService(time.Minute, log.Named("cron"))
	limiter, err := app.buildLimiter(cron)
	if err != nil {
		app.closeResources()
		return nil, err
	}
	if err := app.manager.Register(cron); err != nil {
		app.closeResources()
		return nil, err
	}

	router := httpapi.NewHandler(NewServices(stores, cfg.Supabase.Bucket, log), httpapi.Options{
		Verifier:       verifier,
		Limiter:        limiter,
		TrustedProxies: proxies,
		Version:        Version,
		Log:            log.Named("http"),
	})
	app.handler = middleware.Chain(router,
		middleware.Recovery(log.Named("http")),
		middleware.NewTracingMiddleware(log.Named("http")).Handler,
		middleware.NewCORSMiddleware(cfg.CORS.Origins()).Handler,
	)

	app.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	return app, nil
}

// NewServices constructs the application services over stores.
func NewServices(stores Stores, bucket string, log *logger.Logger) httpapi.Services {
	if log == nil {
		log = logger.NewDefault("bealive-api")
	}
	return httpapi.Services{
		Challenges:  challenges.New(stores.Challenges, stores.Commitments, stores.Stats, stores.Posts, log.Named("challenges")),
		Commitments: commitments.New(stores.Challenges, stores.Commitments, log.Named("commitments")),
		Aggregates: aggregates.New(aggregates.Stores{
			Challenges:  stores.Challenges,
			Commitments: stores.Commitments,
			Stats:       stores.Stats,
			Posts:       stores.Posts,
			Connections: stores.Connections,
		}, log.Named("aggregates")),
		Posts:    posts.New(stores.Posts, stores.Profiles, log.Named("posts")),
		Network:  network.New(stores.Connections, stores.Profiles, log.Named("network")),
		Profiles: profiles.New(stores.Profiles, log.Named("profiles")),
		Uploads:  uploads.New(stores.Posts, stores.Objects, bucket, log.Named("uploads")),
	}
}

func newSupabaseClient(cfg config.SupabaseConfig) (*supabase.Client, error) {
	return supabase.New(supabase.Config{
		URL:         cfg.URL,
		APIKey:      cfg.AnonKey,
		ServiceKey:  cfg.ServiceRoleKey,
		Timeout:     cfg.Timeout,
		AuthTimeout: cfg.AuthTimeout,
		Retry: supabase.Retry{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
		},
		Breaker: supabase.Breaker{
			Threshold: cfg.BreakerThreshold,
			Cooldown:  cfg.BreakerCooldown,
			OnStateChange: func(_, to supabase.CircuitState) {
				metrics.SetCircuitState(int(to))
			},
		},
		Observer: metrics.RecordGatewayRequest,
	})
}

func (a *Application) buildStores(client *supabase.Client) (Stores, error) {
	switch a.cfg.Database.Backend {
	case config.BackendSupabase:
		if client == nil {
			return Stores{}, errors.New("supabase backend requires SUPABASE_URL and an API key")
		}
		a.log.WithField("url", client.BaseURL()).Info("using supabase storage")
		return storesFrom(supabasestore.New(client, a.log.Named("supabase-store")), supabasestore.NewObjects(client)), nil

	case config.BackendPostgres:
		db, err := OpenDatabase(a.cfg.Database)
		if err != nil {
			return Stores{}, err
		}
		a.db = db
		var objects storage.ObjectStore
		if client != nil {
			objects = supabasestore.NewObjects(client)
		} else {
			a.log.Warn("no supabase storage configured; uploads are kept in memory")
			objects = memory.NewObjects()
		}
		a.log.Info("using postgres storage")
		return storesFrom(postgres.New(db, a.log.Named("postgres-store")), objects), nil

	case config.BackendMemory:
		a.log.Warn("using in-memory storage; data is lost on restart")
		return storesFrom(memory.New(), memory.NewObjects()), nil

	default:
		return Stores{}, fmt.Errorf("unknown database backend %q", a.cfg.Database.Backend)
	}
}

func (a *Application) buildLimiter(cron *system.CronService) (middleware.Limiter, error) {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}
	if rl.RedisURL != "" {
		client, err := middleware.NewRedisClient(rl.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.log.Info("using redis rate limiter")
		return middleware.NewRedisLimiter(client, int(rl.RequestsPerSecond), time.Second), nil
	}

	local := middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst)
	idle := rl.IdleTTL
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	err := cron.Add(system.Job{
		Name: "rate-limiter-cleanup",
		Spec: rl.CleanupSpec,
		Run: func(context.Context) error {
			if removed := local.Cleanup(idle); removed > 0 {
				a.log.WithField("removed", removed).Debug("rate limiter buckets evicted")
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return local, nil
}

// OpenDatabase opens and pings a Postgres pool.
func OpenDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts background services and the HTTP server, blocking until ctx is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, background services and
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	grace := a.cfg.Server.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.manager.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.closeResources()
	return errors.Join(errs...)
}

func (a *Application) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
}
