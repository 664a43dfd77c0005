package xiangqi

import "math/rand"

// zobristTable and zobristSideToMove are filled deterministically at
// package init from a fixed seed, mirroring the teacher's own preference
// for a deterministic SeedGeneratorFn over an unseeded global RNG
// (pkg/mcts/vars.go) so that Position.Hash is reproducible across runs and
// test fixtures never flake on hash collisions.
var (
	zobristTable      [8][2][BoardRows][BoardCols]uint64
	zobristSideToMove uint64
)

const zobristSeed = 0x63637a65726f // "cczero" in hex, arbitrary but fixed

func init() {
	rng := rand.New(rand.NewSource(zobristSeed))
	for t := King; t <= Pawn; t++ {
		for s := Red; s <= Black; s++ {
			for r := 0; r < BoardRows; r++ {
				for c := 0; c < BoardCols; c++ {
					zobristTable[t][s][r][c] = rng.Uint64()
				}
			}
		}
	}
	zobristSideToMove = rng.Uint64()
}

func zobristPiece(pc Piece, sq Square) uint64 {
	return zobristTable[pc.Type][pc.Side][sq.Row][sq.Col]
}

func (p *Position) computeHash() uint64 {
	var h uint64
	for r := int8(0); r < BoardRows; r++ {
		for c := int8(0); c < BoardCols; c++ {
			sq := Square{Row: r, Col: c}
			if pc := p.At(sq); !pc.Empty() {
				h ^= zobristPiece(pc, sq)
			}
		}
	}
	if p.sideToMove == Black {
		h ^= zobristSideToMove
	}
	return h
}
