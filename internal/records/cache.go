package records

import (
	"sync"
	"time"

	"github.com/normaq/clientbook/internal/model"
)

// Snapshot is an immutable copy of a table's rows tagged with the time it
// was fetched. A snapshot is superseded wholesale by the next fetch, never
// mutated in place, so concurrent readers see either the old rows or the
// new rows but never a torn mix.
type Snapshot struct {
	Rows      []model.Record
	FetchedAt time.Time
}

// SnapshotCache holds one snapshot per table with a shared TTL.
type SnapshotCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	byID map[string]*Snapshot
}

// NewSnapshotCache creates a cache with the given TTL.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		ttl:  ttl,
		now:  time.Now,
		byID: make(map[string]*Snapshot),
	}
}

// newSnapshotCacheWithClock lets tests control time.
func newSnapshotCacheWithClock(ttl time.Duration, now func() time.Time) *SnapshotCache {
	c := NewSnapshotCache(ttl)
	c.now = now
	return c
}

// Get returns the cached snapshot for the table and whether it is still
// within the TTL window. An expired snapshot is still returned (stale=true
// via fresh=false) so the caller can decide to serve it when the source is
// down.
func (c *SnapshotCache) Get(tableID string) (snap *Snapshot, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.byID[tableID]
	if !ok {
		return nil, false
	}
	return snap, c.now().Sub(snap.FetchedAt) < c.ttl
}

// Put stores a new snapshot for the table, stamped now.
func (c *SnapshotCache) Put(tableID string, rows []model.Record) *Snapshot {
	snap := &Snapshot{Rows: rows, FetchedAt: c.now()}

	c.mu.Lock()
	c.byID[tableID] = snap
	c.mu.Unlock()

	return snap
}

// Invalidate drops the snapshot for one table. Used as write-through
// invalidation after a successful create or update.
func (c *SnapshotCache) Invalidate(tableID string) {
	c.mu.Lock()
	delete(c.byID, tableID)
	c.mu.Unlock()
}
