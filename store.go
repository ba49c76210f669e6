package chring

import (
	"context"
	"fmt"
	"sync"

	"go-chring/database"
)

// BackendStore is a Registry backed by the shared Postgres backends table.
// Independent balancer instances converge on the same placement by hashing
// the same backend set; this store gives them one source of that set.
//
// The store hands out stable *Server instances: reloading a service updates
// each server's weight and flags in place rather than minting new objects,
// so references held by published tables stay meaningful across reloads.
type BackendStore struct {
	queries *database.Queries

	mu      sync.Mutex
	servers map[string]map[string]*Server // serviceID -> backendID -> Server
}

// NewBackendStore creates a store reading from the given queries.
func NewBackendStore(queries *database.Queries) *BackendStore {
	return &BackendStore{
		queries: queries,
		servers: make(map[string]map[string]*Server),
	}
}

// Backends loads the service's backend rows and returns them as Backend
// references, creating or updating the cached servers as needed.
func (s *BackendStore) Backends(ctx context.Context, serviceID string) ([]Backend, error) {
	var records, err = s.queries.ListBackends(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load backends for %s: %w", serviceID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cached = s.servers[serviceID]
	if cached == nil {
		cached = make(map[string]*Server)
		s.servers[serviceID] = cached
	}

	var (
		backends = make([]Backend, 0, len(records))
		listed   = make(map[string]bool, len(records))
	)
	for _, record := range records {
		var server, exists = cached[record.BackendID]
		if !exists {
			server = NewServer(record.BackendID, record.Weight)
			cached[record.BackendID] = server
		}
		server.SetWeight(record.Weight)
		server.SetAvailable(record.Available)
		server.SetOverloaded(record.Overloaded)

		listed[record.BackendID] = true
		backends = append(backends, server)
	}

	// Drop cached servers whose rows are gone once nothing references them.
	for backendID, server := range cached {
		if !listed[backendID] && server.Refs() == 0 {
			delete(cached, backendID)
		}
	}

	return backends, nil
}
