package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/server"
	"github.com/onnwee/forcegraph/internal/tracing"
)

// precalculate runs one layout pass over the stored graph and exits.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	cfg := config.Load()
	logger.InitWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	}
	defer errorreporting.Flush(2 * time.Second)

	shutdownTracing, err := tracing.Init("forcegraph-precalculate", tracing.Options{
		Enabled:    cfg.OTELEnabled,
		Endpoint:   cfg.OTELEndpoint,
		SampleRate: cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize DB: %v", err)
	}
	defer store.Close()

	svc := graph.NewService(store, nil, cfg.LayoutParams(), cfg.LayoutMaxNodes)
	if err := svc.PrecalculateLayout(ctx); err != nil {
		errorreporting.CaptureErrorWithContext(err, map[string]string{"component": "precalculate"}, nil)
		errorreporting.Flush(2 * time.Second)
		store.Close()
		log.Fatalf("Failed to precalculate layout: %v", err)
	}
	logger.Info("Layout precalculated successfully")
}
