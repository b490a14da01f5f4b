package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/onnwee/forcegraph/internal/api"
	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/db"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/middleware"
)

// Server owns the HTTP listener and the background workers. The database,
// cache and rate limiter are optional and controlled by config.
type Server struct {
	cfg       *config.Config
	store     *db.Store
	cache     *cache.RistrettoCache
	limiter   *middleware.RateLimiter
	service   *graph.Service
	job       *graph.Job
	collector *metrics.Collector
	http      *http.Server
}

// OpenStore connects and migrates the database named by cfg. It returns
// nil, nil when DATABASE_URL is unset.
func OpenStore(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	logger.Info("Connecting to database", "url", redactURL(cfg.DatabaseURL))
	store, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		StatementTimeout: cfg.DBStatementTimeout,
		BatchSize:        cfg.LayoutBatchSize,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// redactURL hides the password of a postgres:// URL. Key/value DSNs are
// not logged at all.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "<dsn>"
	}
	return u.Redacted()
}

// New builds a server from cfg. store may be nil.
func New(cfg *config.Config, store *db.Store) (*Server, error) {
	if err := cfg.LayoutParams().Validate(); err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	s := &Server{cfg: cfg, store: store}

	// Interface values stay nil, not typed nil, for disabled parts.
	var layoutCache cache.Cache
	if cfg.CacheMaxSizeMB > 0 {
		c, err := cache.New(cache.Options{
			MaxSizeMB:  cfg.CacheMaxSizeMB,
			MaxEntries: cfg.CacheMaxEntries,
			DefaultTTL: cfg.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("layout cache: %w", err)
		}
		s.cache = c
		layoutCache = c
	}

	var graphStore graph.Store
	var apiStore api.Store
	var counter metrics.GraphCounter
	if store != nil {
		graphStore, apiStore, counter = store, store, store
	}

	s.service = graph.NewService(graphStore, layoutCache, cfg.LayoutParams(), cfg.LayoutMaxNodes).
		WithCacheTTL(cfg.CacheTTL)
	if store != nil && !cfg.DisableLayoutJob {
		s.job = graph.NewJob(s.service, cfg.LayoutJobInterval)
	}
	s.collector = metrics.NewCollector(layoutCache, counter, cfg.MetricsInterval)

	if cfg.EnableRateLimit {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}

	handler := api.NewHandler(api.Deps{
		Config:      cfg,
		Service:     s.service,
		Store:       apiStore,
		Cache:       layoutCache,
		RateLimiter: s.limiter,
	})

	s.http = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}
	return s, nil
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is done, then drains connections for up to
// ShutdownTimeout. Background workers stop with ctx.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.HTTPAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collector.Start(ctx)
	}()
	if s.job != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.job.Start(ctx)
		}()
		logger.Info("Layout job scheduled", "interval", s.cfg.LayoutJobInterval.String())
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	wg.Wait()
	return serveErr
}

// Close releases the cache, limiter and database.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}
}
