package xiangqi

import "fmt"

// Move is a from/to square pair. It carries no captured-piece information;
// callers that need undo support go through Position.MakeMove, which
// records that separately.
type Move struct {
	From, To Square
}

func (m Move) String() string {
	return fmt.Sprintf("%c%d%c%d",
		'a'+m.From.Col, m.From.Row, 'a'+m.To.Col, m.To.Row)
}

// Equal reports whether two moves have the same from/to squares.
func (m Move) Equal(other Move) bool {
	return m.From == other.From && m.To == other.To
}

// NullMove is the zero Move, used as a sentinel by callers that track "no
// move yet" (e.g. a fresh root edge before any ponder hit).
var NullMove = Move{}
