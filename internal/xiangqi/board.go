// Package xiangqi is a minimal, self-contained Xiangqi (Chinese Chess) rules
// engine: board representation, per-piece move generation, check detection
// and position hashing. It exists to give pkg/search a concrete collaborator
// to drive and test against; it is not a rules authority for correctness
// corner cases like perpetual-chase scoring.
package xiangqi

// Side is the player to move.
type Side int8

const (
	Red Side = iota
	Black
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == Red {
		return Black
	}
	return Red
}

func (s Side) String() string {
	if s == Red {
		return "red"
	}
	return "black"
}

// PieceType identifies a Xiangqi piece kind, independent of side.
type PieceType int8

const (
	None PieceType = iota
	King
	Advisor
	Bishop
	Knight
	Rook
	Cannon
	Pawn
)

// Piece is a (type, side) pair. The zero value is an empty square.
type Piece struct {
	Type PieceType
	Side Side
}

// Empty reports whether this is an empty-square placeholder.
func (p Piece) Empty() bool { return p.Type == None }

func (p Piece) String() string {
	if p.Empty() {
		return "."
	}
	letters := [...]byte{'.', 'K', 'A', 'B', 'N', 'R', 'C', 'P'}
	c := letters[p.Type]
	if p.Side == Black {
		c = c - 'A' + 'a'
	}
	return string(c)
}

// Square is a board coordinate: Row 0..9 (0 is Black's back rank, 9 is
// Red's), Col 0..8.
type Square struct {
	Row, Col int8
}

// Valid reports whether the square lies on the 10x9 board.
func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < BoardRows && s.Col >= 0 && s.Col < BoardCols
}

func (s Square) add(dr, dc int8) Square {
	return Square{Row: s.Row + dr, Col: s.Col + dc}
}

const (
	BoardRows = 10
	BoardCols = 9

	// River separates row 4 (Black side) from row 5 (Red side).
	riverBlackRow = 4
	riverRedRow   = 5

	palaceMinCol, palaceMaxCol = 3, 5
	blackPalaceMaxRow          = 2
	redPalaceMinRow            = 7
)

// inPalace reports whether sq lies in side's palace (fort).
func inPalace(sq Square, side Side) bool {
	if sq.Col < palaceMinCol || sq.Col > palaceMaxCol {
		return false
	}
	if side == Black {
		return sq.Row >= 0 && sq.Row <= blackPalaceMaxRow
	}
	return sq.Row >= redPalaceMinRow && sq.Row < BoardRows
}

// onOwnSide reports whether sq is still on side's own half of the river,
// i.e. the Bishop has not crossed it.
func onOwnSide(sq Square, side Side) bool {
	if side == Black {
		return sq.Row <= riverBlackRow
	}
	return sq.Row >= riverRedRow
}

// crossedRiver reports whether a pawn belonging to side standing on sq has
// advanced past its own half of the board.
func crossedRiver(sq Square, side Side) bool {
	if side == Black {
		return sq.Row > riverRedRow-1
	}
	return sq.Row < riverBlackRow+1
}

var orthogonal = [4]Square{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}
var diagonal = [4]Square{{Row: -1, Col: -1}, {Row: -1, Col: 1}, {Row: 1, Col: -1}, {Row: 1, Col: 1}}

// knightJumps[i] is the destination offset of one knight jump; legOf(i)
// gives the orthogonally adjacent leg square that jump leaps over.
var knightJumps = [8]Square{
	{Row: -2, Col: -1}, {Row: -2, Col: 1},
	{Row: -1, Col: -2}, {Row: 1, Col: -2},
	{Row: -1, Col: 2}, {Row: 1, Col: 2},
	{Row: 2, Col: -1}, {Row: 2, Col: 1},
}

// legOf returns the square that must be empty for a knight to play the jump
// at knightJumps[i], relative to the knight's own square.
func legOf(i int) Square {
	switch i {
	case 0, 1:
		return Square{Row: -1}
	case 2, 3:
		return Square{Col: -1}
	case 4, 5:
		return Square{Col: 1}
	default:
		return Square{Row: 1}
	}
}
