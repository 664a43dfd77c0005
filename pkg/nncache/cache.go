// Package nncache provides a bounded, concurrent, reference-counted cache
// of neural-network evaluations keyed by position fingerprint, and a
// one-shot batch builder (CachingComputation) that deduplicates against it
// before any input reaches the underlying network.NetworkComputation.
package nncache

import (
	"container/list"
	"sync"

	"github.com/emc2314/cczero/internal/xiangqi"
	"github.com/rs/zerolog"
)

// Entry is the cached (value, policy) pair for one position fingerprint.
// Policy is stored as parallel move/prior slices rather than a map: the
// corpus's own transposition tables (Bubblyworld-lichess-bot, CounterGo)
// favor small fixed-size records over maps for cache-line locality, and a
// Xiangqi position rarely has more than ~40 legal moves.
type Entry struct {
	Value  float32
	Moves  []xiangqi.Move
	Priors []float32

	refs int
	elem *list.Element // position in the LRU list; nil once evicted
}

// Policy returns the prior assigned to m, or 0 if m was not among the
// moves recorded when this entry was created.
func (e *Entry) Policy(m xiangqi.Move) float32 {
	for i, cand := range e.Moves {
		if cand.Equal(m) {
			return e.Priors[i]
		}
	}
	return 0
}

// NNCache is a fixed-capacity LRU cache of Entry, safe for concurrent use.
// Lookup takes the shared (RLock) path; insert/evict/touch take the
// exclusive path, matching spec.md §4.3/§5's lock discipline: entries are
// reference-counted objects a SearchWorker can be actively reading, so a
// field-level atomic swap (as pkg/search/node.go uses for node stats) is
// not safe here.
type NNCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[uint64]*Entry
	order    *list.List // front = most recently used
	log      zerolog.Logger
}

// New returns a cache holding at most capacity entries. A non-positive
// capacity is raised to 1, the way StartThreads raises a non-positive
// thread count to 1.
func New(capacity int, log zerolog.Logger) *NNCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &NNCache{
		capacity: capacity,
		entries:  make(map[uint64]*Entry, capacity),
		order:    list.New(),
		log:      log,
	}
}

// Get looks up key under the shared lock; on a hit it takes the exclusive
// lock to bump the entry to most-recently-used and increment its
// reference count. Callers must call Release when done reading the
// returned Entry.
func (c *NNCache) Get(key uint64) (*Entry, bool) {
	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	e.refs++
	return e, true
}

// Release drops a reference acquired by Get. An entry at refs==0 remains
// in the cache (eligible for eviction) but is not freed here; Go's GC
// reclaims it once evicted and unreferenced, unlike the teacher's manual
// memory model.
func (c *NNCache) Release(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.refs > 0 {
		e.refs--
	}
}

// Insert adds a freshly computed entry under key, evicting the
// least-recently-used unreferenced entry if the cache is full. It returns
// the entry actually stored under key, already reference-counted for the
// caller exactly as Get would: if another goroutine inserted the same key
// first (a cache-miss race under concurrent workers), that existing entry
// is returned instead and entry is discarded, keeping the cache's "one
// entry per fingerprint" invariant. Callers must Release what Insert
// returns.
func (c *NNCache) Insert(key uint64, entry *Entry) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.order.MoveToFront(existing.elem)
		existing.refs++
		c.log.Debug().Uint64("key", key).Msg("nncache: insert raced with an already-cached entry")
		return existing
	}

	c.evictLocked()

	entry.elem = c.order.PushFront(key)
	entry.refs = 1
	c.entries[key] = entry
	c.log.Debug().Uint64("key", key).Int("size", len(c.entries)).Msg("nncache: inserted")
	return entry
}

// evictLocked removes least-recently-used, zero-refcount entries from the
// back of the list until the cache is under capacity. If every entry is
// still referenced, the cache is allowed to temporarily exceed capacity
// rather than free memory still in use by a worker.
func (c *NNCache) evictLocked() {
	for len(c.entries) >= c.capacity {
		victim := c.evictionCandidateLocked()
		if victim == nil {
			c.log.Warn().Int("size", len(c.entries)).Int("capacity", c.capacity).
				Msg("nncache: over capacity, every entry still referenced")
			return
		}
		key := victim.Value.(uint64)
		c.order.Remove(victim)
		delete(c.entries, key)
		c.log.Debug().Uint64("key", key).Msg("nncache: evicted")
	}
}

func (c *NNCache) evictionCandidateLocked() *list.Element {
	for e := c.order.Back(); e != nil; e = e.Prev() {
		key := e.Value.(uint64)
		if c.entries[key].refs == 0 {
			return e
		}
	}
	return nil
}

// Len returns the current number of cached entries.
func (c *NNCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear empties the cache. Intended for use between unrelated searches
// that should not share cached evaluations (e.g. after a position setup
// outside the reused subtree).
func (c *NNCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*Entry, c.capacity)
	c.order.Init()
}
