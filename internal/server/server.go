// Package server exposes the status of an in-progress or finished extract
// run over HTTP, for operators who kicked off a long scan and want to check
// on it without tailing logs.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Status is the JSON body served at GET /status.
type Status struct {
	Processed uint64  `json:"processed"`
	Total     int64   `json:"total"`
	HasTotal  bool    `json:"has_total"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Done      bool    `json:"done"`
	LastError *string `json:"last_error,omitempty"`
}

// Tracker is the single run state the status server reports on. NewTracker
// registers the extraction start time; Update and Finish are called by the
// extraction pipeline as it progresses.
type Tracker struct {
	mu        sync.RWMutex
	startedAt time.Time
	processed uint64
	total     int64
	hasTotal  bool
	done      bool
	lastError error
}

// NewTracker starts a tracker with the known (or unknown) total entry count.
func NewTracker(total int64, hasTotal bool) *Tracker {
	return &Tracker{startedAt: time.Now(), total: total, hasTotal: hasTotal}
}

// TotalOrUnknown returns the known total, or -1 when the reader that seeded
// this tracker had no exact count available.
func (t *Tracker) TotalOrUnknown() int64 {
	if !t.hasTotal {
		return -1
	}
	return t.total
}

// Update records the processed count so far.
func (t *Tracker) Update(processed uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed = processed
}

// Finish marks the run complete, recording err if the run failed.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.lastError = err
}

// Snapshot returns the tracker's current status.
func (t *Tracker) Snapshot() Status {
	return t.snapshot()
}

func (t *Tracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Status{
		Processed: t.processed,
		Total:     t.total,
		HasTotal:  t.hasTotal,
		ElapsedMS: time.Since(t.startedAt).Milliseconds(),
		Done:      t.done,
	}
	if t.lastError != nil {
		msg := t.lastError.Error()
		s.LastError = &msg
	}
	return s
}

// New builds an echo server reporting tracker's status. Routes are rate
// limited with a single global bucket, since this server has no per-client
// identity worth tracking.
func New(tracker *Tracker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	config := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(10),
				Burst:     20,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return "1", nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.String(http.StatusForbidden, "rate limit error")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.String(http.StatusTooManyRequests, "too many requests")
		},
	}
	e.Use(middleware.RateLimiterWithConfig(config))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, tracker.snapshot())
	})

	return e
}
