package search

import (
	"testing"

	"github.com/emc2314/cczero/internal/xiangqi"
)

func sampleMoves(n int) []xiangqi.Move {
	moves := make([]xiangqi.Move, n)
	for i := range moves {
		moves[i] = xiangqi.Move{From: xiangqi.Square{Row: 0, Col: int8(i)}, To: xiangqi.Square{Row: 1, Col: int8(i)}}
	}
	return moves
}

func TestCreateEdgesNormalizesPriors(t *testing.T) {
	node := NewRootNode(false, 0)
	moves := sampleMoves(3)
	CreateEdges(node, moves, []float32{1, 1, 2}, 1)

	var sum float32
	for _, e := range node.Edges() {
		sum += e.Prior
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("expected priors to sum to ~1, got %v", sum)
	}
}

func TestCreateEdgesAppliesPolicySoftmaxTemperature(t *testing.T) {
	node := NewRootNode(false, 0)
	CreateEdges(node, sampleMoves(2), []float32{0.9, 0.1}, 0.5)

	edges := node.Edges()
	if edges[0].Prior <= 0.9 {
		t.Fatalf("expected temp<1 to sharpen the dominant prior above its raw value, got %v", edges[0].Prior)
	}
}

func TestEdgesNeverResizedAfterCreate(t *testing.T) {
	node := NewRootNode(false, 0)
	moves := sampleMoves(4)
	CreateEdges(node, moves, []float32{1, 1, 1, 1}, 1)
	before := len(node.Edges())

	RestrictEdges(node, moves[:2])
	if len(node.Edges()) != before {
		t.Fatalf("RestrictEdges must not resize edges: had %d, now %d", before, len(node.Edges()))
	}
}

func TestRestrictEdgesZeroesDisallowedPriors(t *testing.T) {
	node := NewRootNode(false, 0)
	moves := sampleMoves(3)
	CreateEdges(node, moves, []float32{1, 1, 1}, 1)
	RestrictEdges(node, []xiangqi.Move{moves[0]})

	edges := node.Edges()
	if edges[0].Prior == 0 {
		t.Fatalf("allowed edge should retain non-zero prior")
	}
	if edges[1].Prior != 0 || edges[2].Prior != 0 {
		t.Fatalf("disallowed edges should be zeroed")
	}
	if edges[0].Prior < 0.99 {
		t.Fatalf("the sole allowed edge should absorb all prior mass, got %v", edges[0].Prior)
	}
}

func TestGetOrSpawnChildIsIdempotent(t *testing.T) {
	node := NewRootNode(false, 0)
	CreateEdges(node, sampleMoves(2), []float32{1, 1}, 1)

	a := GetOrSpawnChild(node, 0, false, 0)
	b := GetOrSpawnChild(node, 0, false, 0)
	if a != b {
		t.Fatalf("GetOrSpawnChild should return the same node on repeated calls for the same edge")
	}
}

func TestFinalizeScoreUpdateClearsVirtualLoss(t *testing.T) {
	node := NewRootNode(false, 0)
	node.IncrementNInFlight(VirtualLoss)
	if node.NInFlight() != VirtualLoss {
		t.Fatalf("expected virtual loss applied")
	}
	node.FinalizeScoreUpdate(0.5, VirtualLoss)
	if node.NInFlight() != 0 {
		t.Fatalf("expected virtual loss cleared after FinalizeScoreUpdate, got %d", node.NInFlight())
	}
	if node.N() != 1 {
		t.Fatalf("expected one real visit recorded, got %d", node.N())
	}
	if node.Q() != 0.5 {
		t.Fatalf("expected Q to equal the single backed-up value, got %v", node.Q())
	}
}

func TestGetBestChildNoTemperaturePicksMostVisited(t *testing.T) {
	node := NewRootNode(false, 0)
	CreateEdges(node, sampleMoves(3), []float32{1, 1, 1}, 1)

	c0 := GetOrSpawnChild(node, 0, false, 0)
	c0.FinalizeScoreUpdate(0, 0)
	c1 := GetOrSpawnChild(node, 1, false, 0)
	c1.FinalizeScoreUpdate(0, 0)
	c1.FinalizeScoreUpdate(0, 0)

	if idx := GetBestChildNoTemperature(node); idx != 1 {
		t.Fatalf("expected edge 1 (most visits) to be chosen, got %d", idx)
	}
}

func TestSelectChildReturnsValidIndexWhenNoEdgeVisited(t *testing.T) {
	node := NewRootNode(false, 0)
	CreateEdges(node, sampleMoves(2), []float32{0.5, 0.5}, 1)
	// No children spawned yet: SelectChild must still return a valid index
	// (every edge is unvisited, FPU applies to both).
	idx := SelectChild(node, cpuctDefault, 0.2)
	if idx != 0 && idx != 1 {
		t.Fatalf("expected a valid edge index, got %d", idx)
	}
}
