package network

import (
	"testing"

	"github.com/emc2314/cczero/internal/xiangqi"
)

func TestNewNetworkUnknownBackend(t *testing.T) {
	if _, err := NewNetwork("does-not-exist", nil); err == nil {
		t.Fatalf("expected an error for an unregistered backend")
	}
}

func TestCheckBackendIsDeterministic(t *testing.T) {
	net, err := NewNetwork("check", nil)
	if err != nil {
		t.Fatalf("NewNetwork(check): %v", err)
	}
	pos := xiangqi.NewGame()

	comp1 := net.NewComputation()
	comp1.AddInput(pos)
	if err := comp1.ComputeBlocking(); err != nil {
		t.Fatalf("ComputeBlocking: %v", err)
	}

	comp2 := net.NewComputation()
	comp2.AddInput(pos)
	if err := comp2.ComputeBlocking(); err != nil {
		t.Fatalf("ComputeBlocking: %v", err)
	}

	if comp1.GetQ(0) != comp2.GetQ(0) {
		t.Fatalf("check backend should return the same value across calls")
	}
	if comp1.GetQ(0) != 0 {
		t.Fatalf("check backend should always return a value of 0, got %v", comp1.GetQ(0))
	}
}

func TestRandomBackendPolicySumsToOne(t *testing.T) {
	net, err := NewNetwork("random", nil)
	if err != nil {
		t.Fatalf("NewNetwork(random): %v", err)
	}
	pos := xiangqi.NewGame()
	comp := net.NewComputation()
	comp.AddInput(pos)
	if err := comp.ComputeBlocking(); err != nil {
		t.Fatalf("ComputeBlocking: %v", err)
	}

	var sum float32
	for _, m := range pos.LegalMoves() {
		sum += comp.GetP(0, m)
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("expected policy mass to sum to ~1, got %v", sum)
	}
}

func TestBatchSizeTracksAddedInputs(t *testing.T) {
	net, _ := NewNetwork("random", nil)
	comp := net.NewComputation()
	pos := xiangqi.NewGame()
	comp.AddInput(pos)
	comp.AddInput(pos)
	if comp.BatchSize() != 2 {
		t.Fatalf("expected BatchSize 2, got %d", comp.BatchSize())
	}
}
