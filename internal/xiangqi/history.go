package xiangqi

import "math/bits"

// PositionHistory tracks the sequence of positions reached in a game (or a
// search line rooted at a game position), supporting repetition detection
// and the NN cache's history-aware fingerprint. It is the external
// collaborator spec.md's NodeTree/Search hold onto: enough to drive PUCT
// search and its tests, not a full rules authority.
type PositionHistory struct {
	positions []*Position
}

// NewHistory starts a history at the standard starting position.
func NewHistory() *PositionHistory {
	return &PositionHistory{positions: []*Position{NewGame()}}
}

// NewHistoryFrom starts a history at an arbitrary position (e.g. one
// reconstructed from a FEN-like setup external to this package).
func NewHistoryFrom(p *Position) *PositionHistory {
	return &PositionHistory{positions: []*Position{p}}
}

// Last returns the current (most recent) position. Callers must not
// mutate it directly; use Append/Pop to advance or unwind the history.
func (h *PositionHistory) Last() *Position {
	return h.positions[len(h.positions)-1]
}

// Append plays m from the current position and pushes the resulting
// position onto the history.
func (h *PositionHistory) Append(m Move) {
	next := h.Last().Clone()
	next.MakeMove(m)
	h.positions = append(h.positions, next)
}

// Pop removes the most recently appended position, returning to the prior
// ply. It is a no-op on a history with only the initial position.
func (h *PositionHistory) Pop() {
	if len(h.positions) > 1 {
		h.positions = h.positions[:len(h.positions)-1]
	}
}

// Len returns the number of positions in the history (initial position
// plus one per played move).
func (h *PositionHistory) Len() int { return len(h.positions) }

// IsRepetition reports whether the current position's hash has occurred
// earlier in the history, scanning backward over same-side-to-move plies
// only (a repeated position can only recur every other ply).
func (h *PositionHistory) IsRepetition() bool {
	cur := h.Last()
	for i := len(h.positions) - 3; i >= 0; i -= 2 {
		if h.positions[i].hash == cur.hash {
			return true
		}
	}
	return false
}

// Terminal reports whether the current position ends the game, either by
// the side to move having no legal replies or by repetition (scored here
// as a draw, winner is ignored when draw is true).
func (h *PositionHistory) Terminal() (over, draw bool, winner Side) {
	if h.IsRepetition() {
		return true, true, Red
	}
	if over, w := h.Last().Terminal(); over {
		return true, false, w
	}
	return false, false, Red
}

// CacheKey folds the fingerprints of the last n+1 positions (current ply
// plus n of history) into a single 64-bit key, matching spec.md's
// CacheHistoryLength option: a cache entry can optionally cover a short
// window of prior plies rather than the bare current position alone.
func (h *PositionHistory) CacheKey(n int) uint64 {
	key := h.Last().Hash()
	for i := 1; i <= n; i++ {
		idx := len(h.positions) - 1 - i
		if idx < 0 {
			break
		}
		key ^= bits.RotateLeft64(h.positions[idx].Hash(), i*7)
	}
	return key
}
