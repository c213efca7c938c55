// Package progress reports long-running scan progress at a bounded rate, so
// a slow consumer (a terminal, a log aggregator, an HTTP long-poll) never
// sees more than one update per interval regardless of how fast the
// underlying work advances.
package progress

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Reporter accumulates a processed count and an (optional) total, and calls
// a report function whenever the rate limiter allows, and unconditionally
// once Done is called.
type Reporter struct {
	processed atomic.Uint64
	total     int64
	limiter   *rate.Limiter
	report    func(processed uint64, total int64)
}

// New builds a Reporter that calls report at most once per interval. total
// is -1 when the final count is unknown in advance (e.g. skip_metadata
// archives, where only a raw entry count is available).
func New(interval time.Duration, total int64, report func(processed uint64, total int64)) *Reporter {
	return &Reporter{
		total:   total,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		report:  report,
	}
}

// Add advances the processed count by delta and reports if the rate limiter
// currently allows it. It never blocks.
func (r *Reporter) Add(delta uint64) {
	processed := r.processed.Add(delta)
	if r.limiter.Allow() {
		r.report(processed, r.total)
	}
}

// Done reports the final processed count unconditionally, ignoring the rate
// limit, so the caller always sees a closing update.
func (r *Reporter) Done() {
	r.report(r.processed.Load(), r.total)
}

// WaitReportEvery calls report on a fixed tick until ctx is canceled,
// independent of Add, for consumers that want a heartbeat even when no work
// has completed since the last tick (e.g. an HTTP status endpoint).
func WaitReportEvery(ctx context.Context, interval time.Duration, report func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report()
		}
	}
}
