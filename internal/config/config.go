package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// HTTP server
	HTTPAddr           string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodyMB   int
	MaxRequestNodes    int // largest graph accepted by POST /api/layout
	CORSAllowedOrigins []string
	// Database
	DatabaseURL        string
	DBStatementTimeout time.Duration
	DBMaxOpenConns     int
	// Layout defaults
	LayoutMaxNodes    int
	LayoutIterations  int
	LayoutTheta       float64
	LayoutIdealLength float64
	LayoutRepulsion   float64
	LayoutGravity     float64
	LayoutInitialTemp float64
	LayoutEpsilon     float64       // minimum movement persisted (0 = save all)
	LayoutBatchSize   int           // rows per position update statement
	LayoutTimeout     time.Duration // per-request compute deadline
	// Background job
	DisableLayoutJob  bool
	LayoutJobInterval time.Duration
	// Layout cache
	CacheMaxSizeMB  int64
	CacheMaxEntries int64
	CacheTTL        time.Duration
	// Security settings
	AdminAPIToken        string
	EnableRateLimit      bool
	RateLimitGlobal      float64 // requests per second globally
	RateLimitGlobalBurst int
	RateLimitPerIP       float64 // requests per second per IP
	RateLimitPerIPBurst  int
	// Observability settings
	LogLevel          string
	LogFormat         string
	MetricsInterval   time.Duration
	OTELEnabled       bool
	OTELEndpoint      string
	OTELSampleRate    float64
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
	SentrySampleRate  float64
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	defaults := graph.DefaultParams()
	cached = &Config{
		HTTPAddr:           utils.GetEnv("HTTP_ADDR", ":8000"),
		HTTPReadTimeout:    utils.GetEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout:   utils.GetEnvAsDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
		ShutdownTimeout:    utils.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodyMB:   utils.GetEnvAsInt("MAX_REQUEST_BODY_MB", 8),
		MaxRequestNodes:    utils.GetEnvAsInt("MAX_REQUEST_NODES", 20000),
		CORSAllowedOrigins: utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}, ","),

		DatabaseURL:        utils.GetEnv("DATABASE_URL", ""),
		DBStatementTimeout: utils.GetEnvAsDuration("DB_STATEMENT_TIMEOUT", 25*time.Second),
		DBMaxOpenConns:     utils.GetEnvAsInt("DB_MAX_OPEN_CONNS", 10),

		LayoutMaxNodes:    utils.GetEnvAsInt("LAYOUT_MAX_NODES", 5000),
		LayoutIterations:  utils.GetEnvAsInt("LAYOUT_ITERATIONS", defaults.Iterations),
		LayoutTheta:       utils.GetEnvAsFloat("LAYOUT_THETA", defaults.Theta),
		LayoutIdealLength: utils.GetEnvAsFloat("LAYOUT_IDEAL_LENGTH", defaults.IdealLength),
		LayoutRepulsion:   utils.GetEnvAsFloat("LAYOUT_REPULSION", defaults.Repulsion),
		LayoutGravity:     utils.GetEnvAsFloat("LAYOUT_GRAVITY", defaults.Gravity),
		LayoutInitialTemp: utils.GetEnvAsFloat("LAYOUT_INITIAL_TEMP", defaults.InitialTemp),
		LayoutEpsilon:     utils.GetEnvAsFloat("LAYOUT_EPSILON", 0.0),
		LayoutBatchSize:   utils.GetEnvAsInt("LAYOUT_BATCH_SIZE", 5000),
		LayoutTimeout:     utils.GetEnvAsDuration("LAYOUT_TIMEOUT", 60*time.Second),

		DisableLayoutJob:  utils.GetEnvAsBool("DISABLE_LAYOUT_JOB", false),
		LayoutJobInterval: utils.GetEnvAsDuration("LAYOUT_JOB_INTERVAL", time.Hour),

		CacheMaxSizeMB:  utils.GetEnvAsInt64("CACHE_MAX_SIZE_MB", 64),
		CacheMaxEntries: utils.GetEnvAsInt64("CACHE_MAX_ENTRIES", 1000),
		CacheTTL:        utils.GetEnvAsDuration("CACHE_TTL", 10*time.Minute),

		AdminAPIToken:        strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),

		LogLevel:          strings.ToLower(utils.GetEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(utils.GetEnv("LOG_FORMAT", "")),
		MetricsInterval:   utils.GetEnvAsDuration("METRICS_INTERVAL", 30*time.Second),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      utils.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         utils.GetEnv("SENTRY_DSN", ""),
		SentryEnvironment: utils.GetEnv("SENTRY_ENVIRONMENT", ""),
		SentryRelease:     utils.GetEnv("SENTRY_RELEASE", ""),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}
	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// LayoutParams collects the LAYOUT_* settings into graph parameters.
func (c *Config) LayoutParams() graph.Params {
	return graph.Params{
		Iterations:  c.LayoutIterations,
		Theta:       c.LayoutTheta,
		IdealLength: c.LayoutIdealLength,
		Repulsion:   c.LayoutRepulsion,
		Gravity:     c.LayoutGravity,
		InitialTemp: c.LayoutInitialTemp,
		Epsilon:     c.LayoutEpsilon,
	}
}
