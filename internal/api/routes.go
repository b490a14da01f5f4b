package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/forcegraph/internal/api/handlers"
	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/middleware"
)

// Store is what the HTTP layer reads from the database. A nil Store
// disables the stored-layout and admin precalculation endpoints.
type Store interface {
	handlers.LayoutReader
	handlers.Pinger
}

// Deps holds everything the router needs. Store, Cache and RateLimiter
// may be nil.
type Deps struct {
	Config      *config.Config
	Service     *graph.Service
	Store       Store
	Cache       cache.Cache
	RateLimiter *middleware.RateLimiter
}

// NewRouter registers the routes. Request metrics are attached with
// Router.Use so they are labelled by route template.
func NewRouter(d Deps) *mux.Router {
	cfg := d.Config
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	var pinger handlers.Pinger
	var reader handlers.LayoutReader
	var precalc handlers.Precalculator
	if d.Store != nil {
		pinger, reader, precalc = d.Store, d.Store, d.Service
	}

	// Health and metrics
	r.HandleFunc("/health", handlers.NewHealthHandler(pinger, d.Cache).Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	maxBody := int64(cfg.MaxRequestBodyMB) << 20

	// Ad-hoc layouts
	layout := handlers.NewLayoutHandler(d.Service, cfg.MaxRequestNodes, cfg.LayoutTimeout)
	r.Handle("/api/layout",
		middleware.RequireJSON(middleware.LimitBody(maxBody)(http.HandlerFunc(layout.Compute))),
	).Methods(http.MethodPost)
	r.Handle("/api/layout/stream",
		handlers.NewStreamHandler(d.Service, cfg.MaxRequestNodes, maxBody, cfg.LayoutTimeout, cfg.CORSAllowedOrigins),
	).Methods(http.MethodGet)

	// Stored layout
	stored := handlers.NewStoredHandler(reader)
	r.Handle("/api/layout/stored", middleware.ETag(http.HandlerFunc(stored.GetLayout))).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/layout/runs", stored.ListRuns).Methods(http.MethodGet)

	// Admin
	adminOnly := adminAuth(cfg.AdminAPIToken)
	cacheAdmin := handlers.NewCacheAdminHandler(d.Cache)
	r.Handle("/api/admin/cache/stats", adminOnly(http.HandlerFunc(cacheAdmin.GetCacheStats))).Methods(http.MethodGet)
	r.Handle("/api/admin/cache/invalidate", adminOnly(http.HandlerFunc(cacheAdmin.InvalidateCache))).Methods(http.MethodPost)
	r.Handle("/api/admin/layout/precalculate",
		adminOnly(http.HandlerFunc(handlers.NewPrecalcHandler(precalc).Run)),
	).Methods(http.MethodPost)

	return r
}

// NewHandler wraps the router in the outer middleware chain. CORS sits
// outside the router so preflight requests never hit method matching.
func NewHandler(d Deps) http.Handler {
	var h http.Handler = NewRouter(d)
	h = middleware.Compress(h)
	if d.RateLimiter != nil {
		h = d.RateLimiter.Limit(h)
	}
	h = middleware.CORS(middleware.DefaultCORSConfig(d.Config.CORSAllowedOrigins))(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RecoverWithSentry(h)
	h = middleware.RequestID(h)
	return h
}

// adminAuth requires "Authorization: Bearer <token>". With no token
// configured every admin request is refused.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin token not configured", http.StatusServiceUnavailable)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
