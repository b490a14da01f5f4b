package graph

import (
	"log/slog"
	"time"

	"github.com/onnwee/forcegraph/internal/logger"
)

// progressLogger emits a debug line every interval increments and an info
// line when the work is done.
type progressLogger struct {
	name     string
	interval int
	count    int
	start    time.Time
	log      *slog.Logger
}

func newProgressLogger(name string, interval int) *progressLogger {
	if interval <= 0 {
		interval = 10000
	}
	return &progressLogger{
		name:     name,
		interval: interval,
		start:    time.Now(),
		log:      logger.WithComponent("graph"),
	}
}

func (p *progressLogger) Inc(n int) {
	before := p.count / p.interval
	p.count += n
	if p.count/p.interval != before {
		p.log.Debug("progress", "task", p.name, "count", p.count, "elapsed", time.Since(p.start).String())
	}
}

func (p *progressLogger) Done(summary string) {
	args := []any{"task", p.name, "count", p.count, "elapsed", time.Since(p.start).String()}
	if summary != "" {
		args = append(args, "summary", summary)
	}
	p.log.Info("done", args...)
}
