package chring

import (
	"io"
	"log/slog"
	"time"
)

// DefaultReplicaFactor is the number of virtual nodes created per unit of
// backend weight. 160 flattens load-distribution variance well across a
// modest number of backends.
const DefaultReplicaFactor = 160

// options configures scheduler behavior (internal only).
type options struct {
	replicaFactor int
	hasher        Hasher
	pollInterval  time.Duration
	logger        *slog.Logger
}

// defaultOptions returns sensible defaults.
func defaultOptions() options {
	return options{
		replicaFactor: DefaultReplicaFactor,
		hasher:        DigestHasher{},
		pollInterval:  5 * time.Second,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option is a functional option for configuring a Scheduler, Table, or Watcher.
type Option func(*options)

// WithReplicaFactor sets the number of virtual nodes per unit of weight.
// Values <= 0 fall back to the default. All balancer instances of a tier
// must use the same factor to converge on the same placement.
func WithReplicaFactor(factor int) Option {
	return func(o *options) {
		if factor <= 0 {
			return
		}
		o.replicaFactor = factor
	}
}

// WithHasher sets the hash function used for ring positions and lookups.
// A nil hasher keeps the default.
func WithHasher(h Hasher) Option {
	return func(o *options) {
		if h == nil {
			return
		}
		o.hasher = h
	}
}

// WithPollInterval sets how often a Watcher re-reads the registry looking
// for backend-set changes.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval <= 0 {
			return
		}
		o.pollInterval = interval
	}
}

// WithLogger sets the logger.
// If the logger is nil, a no-op logger is used.
// DEFAULT: A no-op logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			return
		}

		o.logger = logger
	}
}
