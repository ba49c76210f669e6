package chring

import (
	"context"
	"sync"
	"sync/atomic"
)

// Server is a registry-owned backend with mutable runtime state. Weight,
// availability, and overload can be flipped at any time by the host;
// selections observe the change immediately, while the set of ring
// positions changes only on the next rebuild.
type Server struct {
	id         string
	weight     atomic.Int64
	available  atomic.Bool
	overloaded atomic.Bool
	refs       atomic.Int64
}

// NewServer creates an available, non-overloaded server with the given
// stable identifier and weight.
func NewServer(id string, weight int) *Server {
	var s = &Server{id: id}
	s.weight.Store(int64(weight))
	s.available.Store(true)
	return s
}

func (s *Server) ID() string { return s.id }

func (s *Server) Weight() int { return int(s.weight.Load()) }

// SetWeight changes the server's relative weight. The number of virtual
// nodes representing the server follows on the next rebuild.
func (s *Server) SetWeight(weight int) { s.weight.Store(int64(weight)) }

func (s *Server) Available() bool { return s.available.Load() }

func (s *Server) SetAvailable(available bool) { s.available.Store(available) }

func (s *Server) Overloaded() bool { return s.overloaded.Load() }

func (s *Server) SetOverloaded(overloaded bool) { s.overloaded.Store(overloaded) }

func (s *Server) Retain() { s.refs.Add(1) }

func (s *Server) Release() { s.refs.Add(-1) }

// Refs returns the number of outstanding references on the server. A server
// must not be discarded by the host while references remain.
func (s *Server) Refs() int { return int(s.refs.Load()) }

// MemoryRegistry is an in-process Registry for hosts that manage their
// backend sets directly (and for tests). A Postgres-backed registry shared
// by several balancer instances is provided by BackendStore.
type MemoryRegistry struct {
	mu       sync.RWMutex
	services map[string][]*Server
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		services: make(map[string][]*Server),
	}
}

// Add registers servers under a service, skipping IDs already present.
func (r *MemoryRegistry) Add(serviceID string, servers ...*Server) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, server := range servers {
		var duplicate = false
		for _, existing := range r.services[serviceID] {
			if existing.ID() == server.ID() {
				duplicate = true
				break
			}
		}
		if !duplicate {
			r.services[serviceID] = append(r.services[serviceID], server)
		}
	}
}

// Remove unregisters the server with the given ID from a service.
func (r *MemoryRegistry) Remove(serviceID, backendID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var servers = r.services[serviceID]
	for i, server := range servers {
		if server.ID() == backendID {
			r.services[serviceID] = append(servers[:i], servers[i+1:]...)
			return
		}
	}
}

// Get returns the server with the given ID, or nil if absent.
func (r *MemoryRegistry) Get(serviceID, backendID string) *Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, server := range r.services[serviceID] {
		if server.ID() == backendID {
			return server
		}
	}
	return nil
}

// Backends returns the service's current servers as Backend references.
func (r *MemoryRegistry) Backends(_ context.Context, serviceID string) ([]Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var backends = make([]Backend, len(r.services[serviceID]))
	for i, server := range r.services[serviceID] {
		backends[i] = server
	}
	return backends, nil
}
