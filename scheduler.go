package chring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

var (
	// ErrServiceExists is returned when Initialize is called for a service
	// that already has an active table.
	ErrServiceExists = errors.New("service already initialized")

	// ErrUnknownService is returned when Rebuild is called for a service
	// that was never initialized or has been torn down. This indicates a
	// lifecycle-sequencing bug in the host, not a runtime fault.
	ErrUnknownService = errors.New("service not initialized")
)

// Scheduler selects a backend for every inbound request of a virtual
// service by consistent hashing of the request's classification key, so
// that a given client key almost always maps to the same backend and
// backend churn disturbs as few existing mappings as possible.
//
// Select is safe to call concurrently from any number of goroutines and
// never blocks on the lifecycle operations: each service's table is an
// atomically published snapshot, replaced wholesale on rebuild.
type Scheduler struct {
	mu       sync.Mutex // serializes Initialize/Rebuild/Teardown
	registry Registry
	services sync.Map // serviceID -> *serviceState
	options  options
}

// serviceState holds the active table for one virtual service.
type serviceState struct {
	table atomic.Pointer[Table]
}

// NewScheduler creates a scheduler that enumerates backends from the given
// registry.
func NewScheduler(registry Registry, opts ...Option) *Scheduler {
	var options = defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Scheduler{
		registry: registry,
		options:  options,
	}
}

// Initialize builds the service's first table from the registry's current
// backend set and makes the service selectable. A service with zero
// eligible backends initializes fine; its selections return nil until a
// rebuild finds capacity.
func (s *Scheduler) Initialize(ctx context.Context, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services.Load(serviceID); exists {
		return fmt.Errorf("%w: %s", ErrServiceExists, serviceID)
	}

	var table, err = s.buildTable(ctx, serviceID)
	if err != nil {
		return err
	}

	var state = &serviceState{}
	state.table.Store(table)
	s.services.Store(serviceID, state)

	s.options.logger.Info("service initialized",
		"service_id", serviceID,
		"backends", table.Len(),
		"vnodes", table.VNodes())

	return nil
}

// Rebuild replaces the service's table wholesale from the registry's
// current backend set. The new table is fully constructed before it is
// published, so concurrent selections observe either the old snapshot or
// the new one, never an intermediate state. The old table's backend
// references are dropped after publication.
func (s *Scheduler) Rebuild(ctx context.Context, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value, exists = s.services.Load(serviceID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	var state = value.(*serviceState)

	var table, err = s.buildTable(ctx, serviceID)
	if err != nil {
		return err
	}

	if old := state.table.Swap(table); old != nil {
		old.releaseRefs()
	}

	s.options.logger.Info("service rebuilt",
		"service_id", serviceID,
		"backends", table.Len(),
		"vnodes", table.VNodes())

	return nil
}

// Teardown releases the service's table and forgets the service. Calling it
// again for the same service is a no-op.
func (s *Scheduler) Teardown(serviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value, existed = s.services.LoadAndDelete(serviceID)
	if !existed {
		return
	}

	if old := value.(*serviceState).table.Swap(nil); old != nil {
		old.releaseRefs()
	}

	s.options.logger.Info("service torn down", "service_id", serviceID)
}

// Select returns the backend that should receive the request identified by
// the classification key, or nil when the service has no usable backend
// right now (the caller should drop or reject the request, never block).
//
// Candidate keys derived from the request key are tried in order until one
// resolves to a backend that is available, has positive weight, and is not
// overloaded. The derivation is deterministic, so the mapping for a given
// key and backend snapshot is reproducible across calls and across
// balancer instances.
func (s *Scheduler) Select(serviceID string, key []byte) Backend {
	var value, exists = s.services.Load(serviceID)
	if !exists {
		return nil
	}

	var table = value.(*serviceState).table.Load()
	if table == nil || table.Len() == 0 {
		return nil
	}

	var buf [64]byte
	for i := 0; i < table.Len(); i++ {
		var backend = table.Lookup(candidateKey(buf[:0], key, i))
		if backend == nil {
			return nil
		}
		if usable(backend) {
			return backend
		}
	}

	// The candidate probes are independent hashes, so with few backends
	// they can all land on the same unusable one. Walk the successors of
	// the primary position so a usable backend is found whenever one
	// exists; nil now really means no capacity.
	var position = table.options.hasher.Sum64(candidateKey(buf[:0], key, 0))
	return table.ring.walk(position, usable)
}

// usable reports whether a backend may receive new requests right now.
func usable(b Backend) bool {
	return b.Available() && b.Weight() > 0 && !b.Overloaded()
}

// Table returns the service's currently published table, or nil if the
// service is not initialized. Intended for status rendering, not for
// mutation.
func (s *Scheduler) Table(serviceID string) *Table {
	var value, exists = s.services.Load(serviceID)
	if !exists {
		return nil
	}
	return value.(*serviceState).table.Load()
}

// buildTable constructs a fresh table from the registry's current weight>0
// backends for the service.
func (s *Scheduler) buildTable(ctx context.Context, serviceID string) (*Table, error) {
	var backends, err = s.registry.Backends(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate backends for %s: %w", serviceID, err)
	}

	var table = NewTable(
		WithReplicaFactor(s.options.replicaFactor),
		WithHasher(s.options.hasher),
	)
	for _, backend := range backends {
		if weight := backend.Weight(); weight > 0 {
			table.AddBackend(backend, weight)
		}
	}

	return table, nil
}

// candidateKey appends the i-th failover variant of the request key to buf:
// the key followed by ':' and the decimal index. Index 0 is the primary
// mapping; higher indexes probe alternate ring regions when the primary
// backend is unusable.
func candidateKey(buf, key []byte, i int) []byte {
	buf = append(buf, key...)
	buf = append(buf, ':')
	return strconv.AppendInt(buf, int64(i), 10)
}
