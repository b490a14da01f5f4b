package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/tracing"
)

//go:embed schema.sql
var schema string

// Options tunes the connection pool and statement sizes.
type Options struct {
	MaxOpenConns     int
	StatementTimeout time.Duration
	BatchSize        int // rows per position update statement
}

// Store is the Postgres-backed graph store used by the layout service.
type Store struct {
	db        *sql.DB
	timeout   time.Duration
	batchSize int
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, connStr string, opts Options) (*Store, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
		conn.SetMaxIdleConns(opts.MaxOpenConns)
	}
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(conn, opts), nil
}

// New wraps an existing connection.
func New(conn *sql.DB, opts Options) *Store {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	return &Store{db: conn, timeout: opts.StatementTimeout, batchSize: opts.BatchSize}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) (err error) {
	ctx, finish := startOp(ctx, "migrate")
	defer func() { finish(err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err = s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping is used by the health check.
func (s *Store) Ping(ctx context.Context) (err error) {
	ctx, finish := startOp(ctx, "ping")
	defer func() { finish(err) }()
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// startOp opens a client span for a store operation. The returned func
// ends the span and records the operation's duration and outcome.
func startOp(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := tracing.StartSpan(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
		),
	)
	start := time.Now()
	return ctx, func(err error) {
		metrics.DBOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.DBOperationErrors.WithLabelValues(op).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
