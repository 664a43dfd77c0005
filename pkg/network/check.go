package network

import "github.com/emc2314/cczero/internal/xiangqi"

func init() {
	RegisterBackend("check", newCheckNetwork)
}

func newCheckNetwork(map[string]string) (Network, error) {
	return &checkNetwork{}, nil
}

// checkNetwork is a fully deterministic, non-random backend: value is
// always 0 (a dead draw) and policy is a flat uniform distribution. It
// exists for invariant tests that need a fixed-point evaluator (spec.md
// §8's determinism law, exercised without Dirichlet noise or temperature)
// rather than anything resembling playing strength.
type checkNetwork struct{}

func (n *checkNetwork) NewComputation() NetworkComputation {
	return NetworkComputation{backend: &checkComputation{}}
}

type checkComputation struct {
	legalPerInput [][]xiangqi.Move
}

func (c *checkComputation) AddInput(pos *xiangqi.Position) {
	c.legalPerInput = append(c.legalPerInput, pos.LegalMoves())
}

func (c *checkComputation) ComputeBlocking() error { return nil }

func (c *checkComputation) GetQ(i int) float32 { return 0 }

func (c *checkComputation) GetP(i int, m xiangqi.Move) float32 {
	legal := c.legalPerInput[i]
	if len(legal) == 0 {
		return 0
	}
	for _, cand := range legal {
		if cand.Equal(m) {
			return 1.0 / float32(len(legal))
		}
	}
	return 0
}

func (c *checkComputation) BatchSize() int { return len(c.legalPerInput) }
