// Package server provides the REST status API for radiogate.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rennerdo30/radiogate/internal/addrcache"
	"github.com/rennerdo30/radiogate/internal/gateway"
	"github.com/rennerdo30/radiogate/internal/logging"
	"github.com/rennerdo30/radiogate/internal/version"
)

// API serves gateway status, the address cache and metrics over HTTP.
type API struct {
	status  func() gateway.Info
	cache   *addrcache.Cache
	metrics http.Handler
	token   string
	started time.Time
	log     *slog.Logger
}

// Config holds API configuration.
type Config struct {
	Status  func() gateway.Info // Snapshot of the running gateway
	Cache   *addrcache.Cache
	Metrics http.Handler // Served at /metrics when set
	Token   string       // Bearer token; empty disables auth
}

// New creates a new API server.
func New(cfg Config) *API {
	return &API{
		status:  cfg.Status,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		token:   cfg.Token,
		started: time.Now(),
		log:     logging.WithComponent("api"),
	}
}

// Router returns the HTTP router for the API.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health stays reachable without a token so supervisors can probe it.
	r.Get("/api/v1/health", a.handleHealth)

	r.Group(func(r chi.Router) {
		if a.token != "" {
			r.Use(a.authMiddleware)
		}

		r.Get("/api/v1/version", a.handleVersion)
		r.Get("/api/v1/status", a.handleStatus)
		NewCacheAPI(a.cache).RegisterRoutes(r)

		if a.metrics != nil {
			r.Handle("/metrics", a.metrics)
		}
	})

	return r
}

// requestLogger logs each request at debug level and hands handlers a
// logger tagged with the request ID.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		log := a.log.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), log)))

		log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		token = strings.TrimPrefix(token, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "running",
		"time":    time.Now().Format(time.RFC3339),
		"version": version.Version,
		"uptime":  time.Since(a.started).Round(time.Second).String(),
	}
	if a.status != nil {
		response["gateway"] = a.status()
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
