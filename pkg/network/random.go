package network

import (
	"math/rand"

	"github.com/emc2314/cczero/internal/xiangqi"
)

func init() {
	RegisterBackend("random", newRandomNetwork)
}

func newRandomNetwork(map[string]string) (Network, error) {
	return &randomNetwork{}, nil
}

// randomNetwork assigns a uniform policy over each input's legal moves and
// a value seeded from the position's own hash, so repeated evaluations of
// the same position are reproducible even though the backend is called
// "random" (determinism matters more to search's own tests than
// unpredictability does).
type randomNetwork struct{}

func (n *randomNetwork) NewComputation() NetworkComputation {
	return NetworkComputation{backend: &randomComputation{}}
}

type randomEntry struct {
	legal []xiangqi.Move
	value float32
}

type randomComputation struct {
	entries []randomEntry
}

func (c *randomComputation) AddInput(pos *xiangqi.Position) {
	legal := pos.LegalMoves()
	rng := rand.New(rand.NewSource(int64(pos.Hash())))
	c.entries = append(c.entries, randomEntry{
		legal: legal,
		value: rng.Float32()*2 - 1,
	})
}

func (c *randomComputation) ComputeBlocking() error { return nil }

func (c *randomComputation) GetQ(i int) float32 { return c.entries[i].value }

func (c *randomComputation) GetP(i int, m xiangqi.Move) float32 {
	legal := c.entries[i].legal
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

func (c *randomComputation) BatchSize() int { return len(c.entries) }
