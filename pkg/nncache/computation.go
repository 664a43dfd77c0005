package nncache

import (
	"fmt"

	"github.com/emc2314/cczero/internal/xiangqi"
	"github.com/emc2314/cczero/pkg/network"
)

// CachingComputation is a one-shot batch builder: each AddInput first
// checks the cache, and only positions that miss are forwarded to the
// wrapped network.NetworkComputation. ComputeBlocking evaluates just the
// misses, inserts their results back into the cache, and GetValue/GetPolicy
// then serve every added input uniformly regardless of whether it hit or
// missed. This is the seam spec.md §4.3 names as CachingComputation.
type CachingComputation struct {
	cache      *NNCache
	comp       network.NetworkComputation
	historyLen int

	entries  []*Entry // one per AddInput call, resolved after ComputeBlocking
	missPos  []*xiangqi.Position
	missKey  []uint64 // cache key for the i-th miss, aligned with missPos
	missSlot []int    // index into entries for the i-th miss added to comp
	computed bool
}

// NewCachingComputation builds a batch against net, deduplicating through
// cache. historyLen is forwarded to PositionHistory.CacheKey, matching the
// CacheHistoryLength search option.
func NewCachingComputation(cache *NNCache, net network.Network, historyLen int) *CachingComputation {
	return &CachingComputation{
		cache:      cache,
		comp:       net.NewComputation(),
		historyLen: historyLen,
	}
}

// AddInput queues hist's current position. A cache hit resolves
// immediately (and holds a reference until Release); a miss is queued
// against the underlying network.
func (c *CachingComputation) AddInput(hist *xiangqi.PositionHistory) {
	key := hist.CacheKey(c.historyLen)
	if e, ok := c.cache.Get(key); ok {
		c.entries = append(c.entries, e)
		return
	}

	idx := len(c.entries)
	c.entries = append(c.entries, nil)
	c.missSlot = append(c.missSlot, idx)
	c.missPos = append(c.missPos, hist.Last())
	c.missKey = append(c.missKey, key)
	c.comp.AddInput(hist.Last())
}

// BatchSize returns the number of inputs added so far, hits and misses
// combined.
func (c *CachingComputation) BatchSize() int {
	return len(c.entries)
}

// Misses returns how many added inputs were not already cached. A worker
// can use this to decide whether a blocking NN call is even necessary.
func (c *CachingComputation) Misses() int {
	return len(c.missPos)
}

// ComputeBlocking evaluates every miss and populates the cache, then
// resolves every previously-nil entry slot. It is safe to call with zero
// misses (an all-cache-hit batch), in which case it does no work.
func (c *CachingComputation) ComputeBlocking() error {
	c.computed = true
	if len(c.missPos) == 0 {
		return nil
	}
	if err := c.comp.ComputeBlocking(); err != nil {
		return fmt.Errorf("nncache: backend evaluation failed: %w", err)
	}

	for i, pos := range c.missPos {
		legal := pos.LegalMoves()
		priors := make([]float32, len(legal))
		for j, m := range legal {
			priors[j] = c.comp.GetP(i, m)
		}
		fresh := &Entry{
			Value:  c.comp.GetQ(i),
			Moves:  legal,
			Priors: priors,
		}
		c.entries[c.missSlot[i]] = c.cache.Insert(c.missKey[i], fresh)
	}
	return nil
}

// GetValue returns the i-th input's value estimate. Valid only after
// ComputeBlocking.
func (c *CachingComputation) GetValue(i int) float32 {
	return c.entries[i].Value
}

// GetPolicy returns the i-th input's prior for move m. Valid only after
// ComputeBlocking.
func (c *CachingComputation) GetPolicy(i int, m xiangqi.Move) float32 {
	return c.entries[i].Policy(m)
}

// Release drops every reference this computation holds on cache entries.
// Call once the caller is done reading GetValue/GetPolicy results (e.g.
// after backing up the batch's values into the tree).
func (c *CachingComputation) Release() {
	for _, e := range c.entries {
		if e != nil {
			c.cache.Release(e)
		}
	}
}
