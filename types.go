package chring

import "context"

// Backend is a real server eligible to receive forwarded requests. Backends
// are owned by the host's registry; the scheduler only references them and
// must bracket every hold with Retain/Release. Weight, availability, and
// overload are read-only facts from the scheduler's perspective.
type Backend interface {
	// ID returns the backend's stable identifier, e.g. "10.0.0.5:8080".
	// Ring positions are derived from it, so it must not change for the
	// lifetime of the backend.
	ID() string

	// Weight returns the backend's current relative weight. Backends with
	// weight <= 0 receive no traffic.
	Weight() int

	// Available reports whether the backend is up.
	Available() bool

	// Overloaded reports whether the backend asked to be skipped for new
	// requests while staying up.
	Overloaded() bool

	// Retain and Release adjust the registry's reference count for this
	// backend. A scheduler table holds exactly one reference per backend
	// it represents.
	Retain()
	Release()
}

// Registry enumerates the live backend set for a virtual service. The
// scheduler consults it on initialize and rebuild only, never on the
// per-request selection path, so implementations may do I/O.
type Registry interface {
	Backends(ctx context.Context, serviceID string) ([]Backend, error)
}
