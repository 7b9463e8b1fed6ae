// Package httpapi exposes the application services over a JSON REST API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bealive/bealive-api/internal/app/metrics"
	"github.com/bealive/bealive-api/internal/app/services/aggregates"
	"github.com/bealive/bealive-api/internal/app/services/challenges"
	"github.com/bealive/bealive-api/internal/app/services/commitments"
	"github.com/bealive/bealive-api/internal/app/services/network"
	"github.com/bealive/bealive-api/internal/app/services/posts"
	"github.com/bealive/bealive-api/internal/app/services/profiles"
	"github.com/bealive/bealive-api/internal/app/services/uploads"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/internal/httputil"
	"github.com/bealive/bealive-api/internal/middleware"
	"github.com/bealive/bealive-api/pkg/logger"
)

// Services bundles the application services the API exposes.
type Services struct {
	Challenges  *challenges.Service
	Commitments *commitments.Service
	Aggregates  *aggregates.Service
	Posts       *posts.Service
	Network     *network.Service
	Profiles    *profiles.Service
	Uploads     *uploads.Service
}

// Options configures the router.
type Options struct {
	// Verifier resolves bearer tokens. Required.
	Verifier middleware.Verifier
	// Limiter throttles callers; nil disables rate limiting.
	Limiter middleware.Limiter
	// TrustedProxies may set the client address used for anonymous limits.
	TrustedProxies middleware.TrustedProxies
	Version        string
	Log            *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	svc     Services
	version string
	log     *logger.Logger
	now     func() time.Time
}

// NewHandler returns a router exposing the REST API. Cross-cutting concerns
// that must run for unmatched routes (recovery, tracing, CORS) are applied by
// the caller around the returned handler.
func NewHandler(svc Services, opts Options) *mux.Router {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{svc: svc, version: opts.Version, log: log, now: time.Now}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, apperrors.NotFound("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorBody{
			Error: "method not allowed",
			Code:  "method_not_allowed",
		})
	})

	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.Authenticate(opts.Verifier, log.Named("auth")))
	if opts.Limiter != nil {
		r.Use(middleware.RateLimit(opts.Limiter, opts.TrustedProxies, log.Named("ratelimit")))
	}

	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/ping", h.ping).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Static segments are registered before {id} so they win the match.
	r.Handle("/challenges/search", auth(h.searchChallenges)).Methods(http.MethodGet)
	r.Handle("/challenges", auth(h.createChallenge)).Methods(http.MethodPost)
	r.HandleFunc("/challenges", h.listChallenges).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{id}", h.getChallenge).Methods(http.MethodGet)
	r.Handle("/challenges/{id}", auth(h.updateChallenge)).Methods(http.MethodPatch)
	r.HandleFunc("/challenges/{id}/stats", h.challengeStats).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{id}/posts", h.challengePosts).Methods(http.MethodGet)
	r.Handle("/challenges/{id}/commitments/me", auth(h.myCommitment)).Methods(http.MethodGet)
	r.Handle("/challenges/{id}/commitments", auth(h.createCommitment)).Methods(http.MethodPost)
	r.Handle("/challenges/{id}/commitments", auth(h.listCommitments)).Methods(http.MethodGet)
	r.Handle("/commitments/me", auth(h.myCommitments)).Methods(http.MethodGet)

	r.Handle("/posts", auth(h.createPost)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}", h.getPost).Methods(http.MethodGet)
	r.Handle("/posts/{id}", auth(h.deletePost)).Methods(http.MethodDelete)
	r.Handle("/posts/{id}/media", auth(h.updatePostMedia)).Methods(http.MethodPatch)

	r.Handle("/feed/challenges/trending", auth(h.trending)).Methods(http.MethodGet)
	r.Handle("/feed", auth(h.feed)).Methods(http.MethodGet)
	r.Handle("/users/{id}/posts", auth(h.userPosts)).Methods(http.MethodGet)

	r.Handle("/network", auth(h.listNetwork)).Methods(http.MethodGet)
	r.Handle("/network/follow", auth(h.follow)).Methods(http.MethodPost)
	r.Handle("/network/unfollow", auth(h.unfollowBody)).Methods(http.MethodPost)
	r.Handle("/network/follow/{id}", auth(h.unfollowPath)).Methods(http.MethodDelete)
	r.Handle("/network/import-contacts", auth(h.importContacts)).Methods(http.MethodPost)
	r.Handle("/network/import-and-follow", auth(h.importAndFollow)).Methods(http.MethodPost)

	r.Handle("/me", auth(h.getMe)).Methods(http.MethodGet)
	r.Handle("/me", auth(h.patchMe)).Methods(http.MethodPatch)
	r.Handle("/me/summary", auth(h.mySummary)).Methods(http.MethodGet)
	r.Handle("/profiles", auth(h.createProfile)).Methods(http.MethodPost)

	r.Handle("/uploads/presign", auth(h.presignUpload)).Methods(http.MethodPost)
	r.Handle("/uploads/direct", auth(h.directUpload)).Methods(http.MethodPost)

	return r
}

func auth(fn http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(fn)
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "BeAlive API is running",
		"version": h.version,
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"service":   "bealive-api",
	})
}

func (h *handler) ping(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}
