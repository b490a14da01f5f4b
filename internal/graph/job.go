package graph

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/forcegraph/internal/circuitbreaker"
	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/logger"
)

// jobFailureThreshold consecutive failed runs pause the job for a few
// intervals before a trial run.
const jobFailureThreshold = 3

// Job recomputes the stored layout on a fixed interval.
type Job struct {
	service  *Service
	interval time.Duration
	breaker  *circuitbreaker.CircuitBreaker
}

func NewJob(service *Service, interval time.Duration) *Job {
	return &Job{
		service:  service,
		interval: interval,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "layout_job",
			FailureThreshold: jobFailureThreshold,
			SuccessThreshold: 1,
			Timeout:          4 * interval,
		}),
	}
}

// Start runs once immediately and then on every tick until ctx is done.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *Job) run(ctx context.Context) {
	err := j.breaker.Call(func() error {
		return j.service.PrecalculateLayout(ctx)
	})
	switch {
	case err == nil || ctx.Err() != nil:
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		logger.WarnContext(ctx, "Layout job paused after repeated failures")
	default:
		logger.ErrorContext(ctx, "Error precalculating layout", "error", err)
		errorreporting.CaptureErrorWithContext(err, map[string]string{"component": "layout_job"}, nil)
	}
}
