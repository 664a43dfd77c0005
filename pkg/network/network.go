// Package network defines the pluggable neural-network evaluator boundary
// that pkg/search drives: a position goes in, a value estimate and a move
// policy come out. Real NN backends are out of scope (spec.md §1); this
// package ships two deterministic stand-ins ("random", "check") used by
// search's own tests and by cmd/cczero-demo.
package network

import "github.com/emc2314/cczero/internal/xiangqi"

// Network constructs NetworkComputation batches. Implementations are
// expected to be safe for concurrent use by multiple SearchWorkers, the
// way the teacher's GameOperations.Clone lets each worker hold its own
// collaborator; a Network itself is shared, but each call to NewComputation
// returns an independent batch builder.
type Network interface {
	NewComputation() NetworkComputation
}

// NetworkComputation batches one or more positions, evaluates them in a
// single call to ComputeBlocking, and exposes the per-input value/policy
// results by index. This is the seam pkg/nncache.CachingComputation wraps
// to deduplicate against cached entries before any input reaches here.
type NetworkComputation struct {
	backend computation
}

// computation is the per-backend implementation NetworkComputation
// forwards to; kept as an internal interface so AddInput/GetQ/GetP stay
// stable even as backends vary in how they store added inputs.
type computation interface {
	AddInput(pos *xiangqi.Position)
	ComputeBlocking() error
	GetQ(i int) float32
	GetP(i int, m xiangqi.Move) float32
	BatchSize() int
}

// AddInput queues pos for evaluation. Inputs are indexed in the order
// added; ComputeBlocking must be called before GetQ/GetP are valid.
func (c *NetworkComputation) AddInput(pos *xiangqi.Position) {
	c.backend.AddInput(pos)
}

// ComputeBlocking runs the batch to completion. It is the sole mandatory
// blocking point in the worker pipeline (spec.md §4.2 stage 4).
func (c *NetworkComputation) ComputeBlocking() error {
	return c.backend.ComputeBlocking()
}

// GetQ returns the value head's estimate, from the side-to-move's
// perspective, for the i-th input added.
func (c *NetworkComputation) GetQ(i int) float32 {
	return c.backend.GetQ(i)
}

// GetP returns the policy head's prior probability mass assigned to move m
// for the i-th input added.
func (c *NetworkComputation) GetP(i int, m xiangqi.Move) float32 {
	return c.backend.GetP(i, m)
}

// BatchSize returns how many inputs have been queued so far.
func (c *NetworkComputation) BatchSize() int {
	return c.backend.BatchSize()
}
