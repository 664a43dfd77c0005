package nncache

import (
	"testing"

	"github.com/emc2314/cczero/internal/xiangqi"
	"github.com/emc2314/cczero/pkg/network"
	"github.com/rs/zerolog"
)

func TestCacheMissThenHit(t *testing.T) {
	cache := New(16, zerolog.Nop())
	net, _ := network.NewNetwork("check", nil)
	hist := xiangqi.NewHistory()

	c1 := NewCachingComputation(cache, net, 0)
	c1.AddInput(hist)
	if c1.Misses() != 1 {
		t.Fatalf("expected a miss on first lookup, got %d misses", c1.Misses())
	}
	if err := c1.ComputeBlocking(); err != nil {
		t.Fatalf("ComputeBlocking: %v", err)
	}
	c1.Release()

	c2 := NewCachingComputation(cache, net, 0)
	c2.AddInput(hist)
	if c2.Misses() != 0 {
		t.Fatalf("expected a cache hit on second lookup, got %d misses", c2.Misses())
	}
	if err := c2.ComputeBlocking(); err != nil {
		t.Fatalf("ComputeBlocking: %v", err)
	}
	if c2.GetValue(0) != c1.GetValue(0) {
		t.Fatalf("cached value should match the originally computed value")
	}
	c2.Release()
}

func TestCacheEvictsOnlyUnreferencedEntries(t *testing.T) {
	cache := New(1, zerolog.Nop())
	net, _ := network.NewNetwork("check", nil)

	hist1 := xiangqi.NewHistory()
	c1 := NewCachingComputation(cache, net, 0)
	c1.AddInput(hist1)
	if err := c1.ComputeBlocking(); err != nil {
		t.Fatalf("ComputeBlocking: %v", err)
	}
	// Do not release c1 yet: its entry must survive the next insert attempt.

	hist2 := xiangqi.NewHistory()
	hist2.Append(hist2.Last().LegalMoves()[0])
	c2 := NewCachingComputation(cache, net, 0)
	c2.AddInput(hist2)
	if err := c2.ComputeBlocking(); err != nil {
		t.Fatalf("ComputeBlocking: %v", err)
	}
	c2.Release()

	if cache.Len() < 1 {
		t.Fatalf("cache should retain at least the referenced entry")
	}
	c1.Release()
}

func TestCacheLenRespectsCapacityOnceUnreferenced(t *testing.T) {
	cache := New(1, zerolog.Nop())
	net, _ := network.NewNetwork("check", nil)

	hist1 := xiangqi.NewHistory()
	c1 := NewCachingComputation(cache, net, 0)
	c1.AddInput(hist1)
	_ = c1.ComputeBlocking()
	c1.Release()

	hist2 := xiangqi.NewHistory()
	hist2.Append(hist2.Last().LegalMoves()[0])
	c2 := NewCachingComputation(cache, net, 0)
	c2.AddInput(hist2)
	_ = c2.ComputeBlocking()
	c2.Release()

	if cache.Len() > 1 {
		t.Fatalf("cache of capacity 1 should hold at most one entry once unreferenced, got %d", cache.Len())
	}
}
