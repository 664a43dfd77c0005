package search

import "time"

// mainThreadID mirrors the teacher's mainThreadId (pkg/mcts/vars.go): the
// worker with this id owns ThinkingInfo callback emission.
const mainThreadID = 0

// VirtualLoss is added to a node's in-flight count while a worker's descent
// passes through it, discouraging other workers from selecting the same
// path before a real backup lands. Same value and purpose as the
// teacher's VirtualLoss (pkg/mcts/vars.go).
const VirtualLoss int32 = 2

// SeedGeneratorFn is the seed source for any randomness this package
// needs (temperature sampling, Dirichlet noise). It defaults to the current
// time, mirroring the teacher's SeedGeneratorFn (pkg/mcts/vars.go), and
// tests can override it with a fixed seed for reproducibility.
var SeedGeneratorFn = func() int64 {
	return time.Now().UnixNano()
}

// SetSeedGeneratorFn overrides SeedGeneratorFn, e.g. from tests that need
// a fixed seed.
func SetSeedGeneratorFn(f func() int64) {
	if f != nil {
		SeedGeneratorFn = f
	}
}
