package chring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Watcher keeps one service's scheduler state in sync with its registry.
// It initializes the service on start, then polls the registry and triggers
// a rebuild whenever the backend set or any backend's weight changes.
// Availability and overload flips do not trigger rebuilds: the selection
// path reads those flags live and they do not move ring positions.
type Watcher struct {
	scheduler *Scheduler
	registry  Registry
	serviceID string
	options   options

	cancel      context.CancelFunc
	fingerprint string
}

// NewWatcher creates a watcher for the given service.
func NewWatcher(scheduler *Scheduler, registry Registry, serviceID string, opts ...Option) *Watcher {
	var options = defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Watcher{
		scheduler: scheduler,
		registry:  registry,
		serviceID: serviceID,
		options:   options,
	}
}

// Start initializes the service and launches the background poll worker.
//
// Context handling: the caller's context covers the initial load. The
// worker runs with a separate context.Background() so it continues
// independently of the caller's context, and is stopped via the internal
// cancel function when Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	var fingerprint, err = w.currentFingerprint(ctx)
	if err != nil {
		return fmt.Errorf("failed to read initial backend set: %w", err)
	}

	if err := w.scheduler.Initialize(ctx, w.serviceID); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	w.fingerprint = fingerprint

	var workerCtx context.Context
	workerCtx, w.cancel = context.WithCancel(context.Background())
	go w.pollWorker(workerCtx)

	w.options.logger.Info("watcher started",
		"service_id", w.serviceID,
		"poll_interval", w.options.pollInterval)

	return nil
}

// Stop cancels the poll worker and tears the service down.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.scheduler.Teardown(w.serviceID)
}

// pollWorker periodically compares the registry's backend set against the
// last one the scheduler saw and rebuilds on change.
func (w *Watcher) pollWorker(ctx context.Context) {
	var ticker = time.NewTicker(w.options.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.refresh(ctx); err != nil {
				w.options.logger.Error("failed to refresh backend set",
					"service_id", w.serviceID, "error", err)
			}
		}
	}
}

// refresh rebuilds the service if the backend set changed since the last
// poll.
func (w *Watcher) refresh(ctx context.Context) error {
	var fingerprint, err = w.currentFingerprint(ctx)
	if err != nil {
		return err
	}

	if fingerprint == w.fingerprint {
		return nil
	}

	if err := w.scheduler.Rebuild(ctx, w.serviceID); err != nil {
		return err
	}
	w.fingerprint = fingerprint

	w.options.logger.Info("backend set changed, service rebuilt",
		"service_id", w.serviceID)

	return nil
}

// currentFingerprint summarizes the membership and weights of the service's
// backend set. Order-insensitive: two listings with the same backends and
// weights produce the same fingerprint.
func (w *Watcher) currentFingerprint(ctx context.Context) (string, error) {
	var backends, err = w.registry.Backends(ctx, w.serviceID)
	if err != nil {
		return "", err
	}

	var parts = make([]string, 0, len(backends))
	for _, backend := range backends {
		parts = append(parts, fmt.Sprintf("%s=%d", backend.ID(), backend.Weight()))
	}
	sort.Strings(parts)

	return strings.Join(parts, ","), nil
}
