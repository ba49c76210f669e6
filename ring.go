package chring

import (
	"github.com/google/btree"
)

// ringEntry is one virtual node: a position on the circular keyspace owned
// by exactly one backend. Many entries reference the same backend.
type ringEntry struct {
	position uint64
	ownerID  string
	replica  int
	owner    Backend
}

// Less orders entries by position, breaking ties by owner identity and then
// replica index so that lookups stay deterministic when two replicas hash to
// the same position.
func (e *ringEntry) Less(than btree.Item) bool {
	var o = than.(*ringEntry)
	if e.position != o.position {
		return e.position < o.position
	}
	if e.ownerID != o.ownerID {
		return e.ownerID < o.ownerID
	}
	return e.replica < o.replica
}

// ring is the ordered collection of virtual nodes. The btree gives
// logarithmic insert, remove, and successor queries, which matters because
// the ring is torn down and repopulated on every backend-set change while
// point queries keep arriving. Not safe for concurrent mutation; tables are
// built privately and published read-only.
type ring struct {
	tree    *btree.BTree
	byOwner map[string][]*ringEntry
}

func newRing() *ring {
	return &ring{
		tree:    btree.New(32),
		byOwner: make(map[string][]*ringEntry),
	}
}

// insert places one virtual node on the ring.
func (r *ring) insert(position uint64, owner Backend, replica int) {
	var entry = &ringEntry{
		position: position,
		ownerID:  owner.ID(),
		replica:  replica,
		owner:    owner,
	}
	r.tree.ReplaceOrInsert(entry)
	r.byOwner[entry.ownerID] = append(r.byOwner[entry.ownerID], entry)
}

// removeOwner deletes every virtual node owned by the given backend. The
// per-owner index avoids scanning the whole tree.
func (r *ring) removeOwner(ownerID string) {
	for _, entry := range r.byOwner[ownerID] {
		r.tree.Delete(entry)
	}
	delete(r.byOwner, ownerID)
}

// successor returns the owner of the virtual node with the smallest position
// >= the query position, wrapping past the maximum to the ring's minimum.
// Returns nil only when the ring is empty.
func (r *ring) successor(position uint64) Backend {
	var found Backend
	r.tree.AscendGreaterOrEqual(&ringEntry{position: position}, func(item btree.Item) bool {
		found = item.(*ringEntry).owner
		return false
	})
	if found != nil {
		return found
	}
	// Wrap around.
	if min := r.tree.Min(); min != nil {
		return min.(*ringEntry).owner
	}
	return nil
}

// walk visits distinct owners clockwise from the query position, wrapping
// once, and returns the first owner accepted by the predicate, or nil when
// none is. Each owner is offered at most once.
func (r *ring) walk(position uint64, accept func(Backend) bool) Backend {
	var (
		seen  = make(map[string]bool, len(r.byOwner))
		found Backend
		visit = func(item btree.Item) bool {
			var entry = item.(*ringEntry)
			if seen[entry.ownerID] {
				return true
			}
			seen[entry.ownerID] = true
			if accept(entry.owner) {
				found = entry.owner
				return false
			}
			return len(seen) < len(r.byOwner)
		}
	)

	r.tree.AscendGreaterOrEqual(&ringEntry{position: position}, visit)
	if found == nil && len(seen) < len(r.byOwner) {
		r.tree.Ascend(visit)
	}
	return found
}

// size returns the number of virtual nodes on the ring.
func (r *ring) size() int {
	return r.tree.Len()
}
