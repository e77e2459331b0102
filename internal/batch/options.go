package batch

import (
	"time"

	"recroai/internal/ai"
	"recroai/internal/errors"
)

// Defaults for a Controller built without options
const (
	DefaultMaxCandidates        = 50
	DefaultDelegateConcurrency  = 3
	DefaultCandidateConcurrency = 5
	DefaultCallTimeout          = 30 * time.Second
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithMaxCandidates sets the hard per-run candidate cap.
func WithMaxCandidates(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxCandidates = n
		}
	}
}

// WithDelegateConcurrency caps simultaneous delegate calls across the run.
func WithDelegateConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.delegateConcurrency = n
		}
	}
}

// WithCandidateConcurrency sets how many candidates are evaluated at once.
func WithCandidateConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.candidateConcurrency = n
		}
	}
}

// WithCallTimeout bounds each delegate call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithRunTimeout bounds a whole run. Zero means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.runTimeout = d
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *errors.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver receives every finished run.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithAuthenticityReview asks r for a second opinion on every profile the
// assessor flags.
func WithAuthenticityReview(r ai.AuthenticityReviewer) Option {
	return func(c *Controller) {
		c.reviewer = r
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}
