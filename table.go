package chring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Table is a consistent-hash table mapping classification keys to weighted
// backends. A backend with weight w occupies w * replicaFactor positions on
// the ring, so the fraction of keys it owns converges toward its share of
// the total weight.
//
// A Table is not safe for concurrent mutation. The Scheduler builds each
// table privately and publishes it atomically; once published, a table is
// only read.
type Table struct {
	ring     *ring
	backends []Backend
	options  options
}

// NewTable creates an empty consistent-hash table.
func NewTable(opts ...Option) *Table {
	var options = defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Table{
		ring:    newRing(),
		options: options,
	}
}

// AddBackend places weight * replicaFactor virtual nodes for the backend on
// the ring and takes a single reference on it. Backends with weight <= 0 or
// already in the table are skipped; a skipped backend is effectively absent
// and receives no traffic.
func (t *Table) AddBackend(backend Backend, weight int) {
	if weight <= 0 {
		return
	}
	for _, held := range t.backends {
		if held.ID() == backend.ID() {
			return
		}
	}

	// One reference per backend, not per replica: the table holds the
	// backend once no matter how many positions represent it.
	backend.Retain()
	t.backends = append(t.backends, backend)

	var replicas = weight * t.options.replicaFactor
	for i := 0; i < replicas; i++ {
		var position = t.options.hasher.Sum64(replicaKey(backend.ID(), i))
		t.ring.insert(position, backend, i)
	}
}

// RemoveBackend removes every virtual node owned by the backend and drops
// the table's reference on it. Removing a backend that is not in the table
// is a no-op.
func (t *Table) RemoveBackend(backend Backend) {
	var idx = -1
	for i, held := range t.backends {
		if held.ID() == backend.ID() {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	t.ring.removeOwner(backend.ID())
	t.backends = append(t.backends[:idx], t.backends[idx+1:]...)
	backend.Release()
}

// Flush empties the table, dropping one reference per represented backend.
// Flushing an already-empty table is a no-op.
func (t *Table) Flush() {
	for _, backend := range t.backends {
		t.ring.removeOwner(backend.ID())
		backend.Release()
	}
	t.backends = nil
}

// releaseRefs drops the table's backend references without touching the
// ring, so selections still in flight on a superseded table keep reading a
// structurally intact ring.
func (t *Table) releaseRefs() {
	for _, backend := range t.backends {
		backend.Release()
	}
}

// Lookup hashes the key and returns the backend owning the nearest virtual
// node at or after that position. Returns nil when the table is empty.
func (t *Table) Lookup(key []byte) Backend {
	return t.ring.successor(t.options.hasher.Sum64(key))
}

// Len returns the number of real backends represented in the table.
func (t *Table) Len() int {
	return len(t.backends)
}

// VNodes returns the number of virtual nodes on the ring.
func (t *Table) VNodes() int {
	return t.ring.size()
}

// Backends returns the represented backends in insertion order.
func (t *Table) Backends() []Backend {
	var out = make([]Backend, len(t.backends))
	copy(out, t.backends)
	return out
}

// replicaKey derives the distinct per-replica hash input for a backend's
// i-th virtual node.
func replicaKey(backendID string, i int) []byte {
	return []byte(backendID + ":" + strconv.Itoa(i))
}

// String returns a visual representation of the table state.
func (t *Table) String() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Backends: %d | VNodes: %d\n", len(t.backends), t.ring.size()))

	if len(t.backends) == 0 {
		b.WriteString("[Empty Table]\n")
		return b.String()
	}

	var (
		sorted      = t.Backends()
		totalWeight int
	)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })
	for _, backend := range sorted {
		if w := backend.Weight(); w > 0 {
			totalWeight += w
		}
	}

	for _, backend := range sorted {
		var state = "up"
		switch {
		case !backend.Available():
			state = "down"
		case backend.Overloaded():
			state = "overloaded"
		}

		var share float64
		if totalWeight > 0 && backend.Weight() > 0 {
			share = float64(backend.Weight()) / float64(totalWeight) * 100
		}

		b.WriteString(fmt.Sprintf("  %-21s  weight:%-3d  vnodes:%-5d  share:%5.1f%%  %s\n",
			backend.ID(), backend.Weight(), len(t.ring.byOwner[backend.ID()]), share, state))
	}

	return b.String()
}
