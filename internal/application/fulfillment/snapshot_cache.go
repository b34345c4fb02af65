package fulfillment

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"go.uber.org/zap"
)

// Snapshot is one immutable aggregation result for an as-of date. Snapshots
// are swapped in wholesale: readers see either a complete prior snapshot or
// trigger a fresh full recomputation, never a half-built one.
type Snapshot struct {
	AsOf       time.Time
	Entries    []fulfillment.Entry
	ComputedAt time.Time
}

// AggregateFunc computes the entries for an as-of date on a cache miss.
type AggregateFunc func(ctx context.Context, asOf time.Time) ([]fulfillment.Entry, error)

// SnapshotCache memoizes aggregation results keyed by as-of date (UTC day
// granularity). Invalidate drops every snapshot unconditionally: any write to
// orders or invoices can affect any historical as-of view, and partial
// invalidation is deliberately not attempted. The cache is process-local.
type SnapshotCache struct {
	aggregate AggregateFunc
	logger    *zap.Logger

	mu        sync.RWMutex
	snapshots map[time.Time]*Snapshot
	// generation increments on every Invalidate. A recomputation started
	// under an older generation may not store its result: the source rows it
	// read can predate the write that triggered the invalidation.
	generation uint64

	// computeMu serializes recomputation so concurrent misses on the same
	// as-of date do not duplicate work.
	computeMu sync.Mutex

	hits          int64
	misses        int64
	invalidations int64
}

// SnapshotCacheOption is a functional option for SnapshotCache.
type SnapshotCacheOption func(*SnapshotCache)

// WithCacheLogger sets the logger for the cache.
func WithCacheLogger(logger *zap.Logger) SnapshotCacheOption {
	return func(c *SnapshotCache) {
		c.logger = logger
	}
}

// NewSnapshotCache creates a snapshot cache backed by the given aggregate
// function.
func NewSnapshotCache(aggregate AggregateFunc, opts ...SnapshotCacheOption) *SnapshotCache {
	c := &SnapshotCache{
		aggregate: aggregate,
		logger:    zap.NewNop(),
		snapshots: make(map[time.Time]*Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot for the as-of date, computing and storing
// it on a miss.
func (c *SnapshotCache) Get(ctx context.Context, asOf time.Time) (*Snapshot, error) {
	key := NormalizeAsOfDate(asOf)

	c.mu.RLock()
	snap, ok := c.snapshots[key]
	c.mu.RUnlock()
	if ok {
		atomic.AddInt64(&c.hits, 1)
		c.logger.Debug("snapshot cache hit", zap.Time("as_of", key))
		return snap, nil
	}

	c.computeMu.Lock()
	defer c.computeMu.Unlock()

	// Another reader may have filled the key while we waited.
	c.mu.RLock()
	snap, ok = c.snapshots[key]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		atomic.AddInt64(&c.hits, 1)
		return snap, nil
	}

	atomic.AddInt64(&c.misses, 1)

	entries, err := c.aggregate(ctx, key)
	if err != nil {
		// No partial cache entry on failure.
		return nil, err
	}

	snap = &Snapshot{
		AsOf:       key,
		Entries:    entries,
		ComputedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	stale := c.generation != gen
	if !stale {
		c.snapshots[key] = snap
	}
	c.mu.Unlock()

	if stale {
		// An invalidation landed while we were aggregating; the caller still
		// gets the snapshot it asked for, but the next read recomputes.
		c.logger.Debug("snapshot discarded, invalidated during computation",
			zap.Time("as_of", key))
		return snap, nil
	}

	c.logger.Debug("snapshot computed and cached",
		zap.Time("as_of", key),
		zap.Int("entries", len(entries)),
	)

	return snap, nil
}

// Invalidate drops all cached snapshots. It never fails and never blocks on
// in-flight computation, so mutation collaborators can call it fire-and-forget
// right after a successful write.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	dropped := len(c.snapshots)
	c.snapshots = make(map[time.Time]*Snapshot)
	c.generation++
	c.mu.Unlock()

	atomic.AddInt64(&c.invalidations, 1)
	c.logger.Debug("snapshot cache invalidated", zap.Int("dropped", dropped))
}

// Stats reports cache counters since process start.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Invalidations int64 `json:"invalidations"`
	Cached        int   `json:"cached_snapshots"`
}

// Stats returns the current cache counters.
func (c *SnapshotCache) Stats() Stats {
	c.mu.RLock()
	cached := len(c.snapshots)
	c.mu.RUnlock()

	return Stats{
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Invalidations: atomic.LoadInt64(&c.invalidations),
		Cached:        cached,
	}
}
