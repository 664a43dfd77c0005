package xiangqi

// undoInfo captures what MakeMove needs to reverse itself.
type undoInfo struct {
	move     Move
	captured Piece
	hash     uint64
}

// Position is a mutable Xiangqi board plus enough bookkeeping (move
// history, hash) to generate legal moves, detect check/terminal states,
// and unwind speculative moves made during search.
type Position struct {
	board      [BoardRows][BoardCols]Piece
	sideToMove Side
	hash       uint64
	undo       []undoInfo
}

// NewGame returns the standard Xiangqi starting position.
func NewGame() *Position {
	p := &Position{}
	p.setupStartingBoard()
	p.hash = p.computeHash()
	return p
}

// NewFromPieces builds a Position from an explicit piece placement,
// useful for constructing fixed test or puzzle positions without playing
// through a full game from the starting board. The caller is responsible
// for supplying a legal-looking arrangement (exactly one king per side,
// no two pieces on the same square); NewFromPieces does not validate it.
func NewFromPieces(pieces map[Square]Piece, toMove Side) *Position {
	p := &Position{sideToMove: toMove}
	for sq, pc := range pieces {
		p.board[sq.Row][sq.Col] = pc
	}
	p.hash = p.computeHash()
	return p
}

func (p *Position) setupStartingBoard() {
	back := [BoardCols]PieceType{Rook, Knight, Bishop, Advisor, King, Advisor, Bishop, Knight, Rook}
	for side := Red; side <= Black; side++ {
		backRow, cannonRow, pawnRow := int8(9), int8(7), int8(6)
		if side == Black {
			backRow, cannonRow, pawnRow = 0, 2, 3
		}
		for c, t := range back {
			p.board[backRow][c] = Piece{Type: t, Side: side}
		}
		p.board[cannonRow][1] = Piece{Type: Cannon, Side: side}
		p.board[cannonRow][7] = Piece{Type: Cannon, Side: side}
		for _, c := range [5]int8{0, 2, 4, 6, 8} {
			p.board[pawnRow][c] = Piece{Type: Pawn, Side: side}
		}
	}
	p.sideToMove = Red
}

// SideToMove reports who moves next.
func (p *Position) SideToMove() Side { return p.sideToMove }

// At returns the piece occupying sq.
func (p *Position) At(sq Square) Piece { return p.board[sq.Row][sq.Col] }

// Hash returns the current Zobrist-style fingerprint of the position,
// including side to move.
func (p *Position) Hash() uint64 { return p.hash }

// MakeMove applies a pseudo-legal move, updating the incremental hash and
// pushing an undo record. It does not verify legality; callers should only
// play moves returned by LegalMoves (or PseudoMoves followed by a legality
// filter), consistent with Xiangqi engines that separate move generation
// from move application.
func (p *Position) MakeMove(m Move) {
	moving := p.At(m.From)
	captured := p.At(m.To)

	u := undoInfo{move: m, captured: captured, hash: p.hash}
	p.undo = append(p.undo, u)

	p.hash ^= zobristPiece(moving, m.From)
	if !captured.Empty() {
		p.hash ^= zobristPiece(captured, m.To)
	}
	p.hash ^= zobristPiece(moving, m.To)

	p.board[m.To.Row][m.To.Col] = moving
	p.board[m.From.Row][m.From.Col] = Piece{}
	p.sideToMove = p.sideToMove.Other()
	p.hash ^= zobristSideToMove
}

// UnmakeMove reverses the most recent MakeMove call.
func (p *Position) UnmakeMove() {
	n := len(p.undo)
	u := p.undo[n-1]
	p.undo = p.undo[:n-1]

	moving := p.At(u.move.To)
	p.board[u.move.From.Row][u.move.From.Col] = moving
	p.board[u.move.To.Row][u.move.To.Col] = u.captured
	p.sideToMove = p.sideToMove.Other()
	p.hash = u.hash
}

// Clone returns a deep, independent copy of the position, including its
// undo records, so UnmakeMove works on the copy as on the original.
func (p *Position) Clone() *Position {
	c := &Position{
		board:      p.board,
		sideToMove: p.sideToMove,
		hash:       p.hash,
		undo:       append([]undoInfo(nil), p.undo...),
	}
	return c
}

// PseudoMoves generates all moves for the side to move that respect piece
// geometry and board/palace/river boundaries but ignore whether the mover's
// own king ends up in check.
func (p *Position) PseudoMoves() []Move {
	moves := make([]Move, 0, 40)
	side := p.sideToMove
	for r := int8(0); r < BoardRows; r++ {
		for c := int8(0); c < BoardCols; c++ {
			sq := Square{Row: r, Col: c}
			pc := p.At(sq)
			if pc.Empty() || pc.Side != side {
				continue
			}
			p.genPieceMoves(sq, pc, &moves)
		}
	}
	return moves
}

func (p *Position) genPieceMoves(sq Square, pc Piece, out *[]Move) {
	switch pc.Type {
	case King:
		for _, d := range orthogonal {
			dst := sq.add(d.Row, d.Col)
			if dst.Valid() && inPalace(dst, pc.Side) && p.canLandOn(dst, pc.Side) {
				*out = append(*out, Move{From: sq, To: dst})
			}
		}
	case Advisor:
		for _, d := range diagonal {
			dst := sq.add(d.Row, d.Col)
			if dst.Valid() && inPalace(dst, pc.Side) && p.canLandOn(dst, pc.Side) {
				*out = append(*out, Move{From: sq, To: dst})
			}
		}
	case Bishop:
		for _, d := range diagonal {
			mid := sq.add(d.Row, d.Col)
			dst := sq.add(2*d.Row, 2*d.Col)
			if dst.Valid() && p.At(mid).Empty() && onOwnSide(dst, pc.Side) && p.canLandOn(dst, pc.Side) {
				*out = append(*out, Move{From: sq, To: dst})
			}
		}
	case Knight:
		for i, j := range knightJumps {
			leg := sq.add(legOf(i).Row, legOf(i).Col)
			if !leg.Valid() || !p.At(leg).Empty() {
				continue
			}
			dst := sq.add(j.Row, j.Col)
			if dst.Valid() && p.canLandOn(dst, pc.Side) {
				*out = append(*out, Move{From: sq, To: dst})
			}
		}
	case Rook:
		for _, d := range orthogonal {
			p.slide(sq, d, pc.Side, out)
		}
	case Cannon:
		for _, d := range orthogonal {
			p.slideCannon(sq, d, pc.Side, out)
		}
	case Pawn:
		p.genPawnMoves(sq, pc, out)
	}
}

func (p *Position) canLandOn(dst Square, side Side) bool {
	occ := p.At(dst)
	return occ.Empty() || occ.Side != side
}

func (p *Position) slide(sq Square, d Square, side Side, out *[]Move) {
	cur := sq
	for {
		cur = cur.add(d.Row, d.Col)
		if !cur.Valid() {
			return
		}
		occ := p.At(cur)
		if occ.Empty() {
			*out = append(*out, Move{From: sq, To: cur})
			continue
		}
		if occ.Side != side {
			*out = append(*out, Move{From: sq, To: cur})
		}
		return
	}
}

func (p *Position) slideCannon(sq Square, d Square, side Side, out *[]Move) {
	cur := sq
	screenFound := false
	for {
		cur = cur.add(d.Row, d.Col)
		if !cur.Valid() {
			return
		}
		occ := p.At(cur)
		if !screenFound {
			if occ.Empty() {
				*out = append(*out, Move{From: sq, To: cur})
				continue
			}
			screenFound = true
			continue
		}
		if !occ.Empty() {
			if occ.Side != side {
				*out = append(*out, Move{From: sq, To: cur})
			}
			return
		}
	}
}

func (p *Position) genPawnMoves(sq Square, pc Piece, out *[]Move) {
	forward := int8(-1)
	if pc.Side == Black {
		forward = 1
	}
	fwd := sq.add(forward, 0)
	if fwd.Valid() && p.canLandOn(fwd, pc.Side) {
		*out = append(*out, Move{From: sq, To: fwd})
	}
	if crossedRiver(sq, pc.Side) {
		for _, dc := range [2]int8{-1, 1} {
			side := sq.add(0, dc)
			if side.Valid() && p.canLandOn(side, pc.Side) {
				*out = append(*out, Move{From: sq, To: side})
			}
		}
	}
}

// kingSquare locates side's king. Panics if absent: a side with no king on
// the board is a caller error, never a reachable game state under
// LegalMoves.
func (p *Position) kingSquare(side Side) Square {
	for r := int8(0); r < BoardRows; r++ {
		for c := int8(0); c < BoardCols; c++ {
			sq := Square{Row: r, Col: c}
			if pc := p.At(sq); pc.Type == King && pc.Side == side {
				return sq
			}
		}
	}
	panic("xiangqi: king missing from board")
}

// InCheck reports whether side's king is currently attacked.
func (p *Position) InCheck(side Side) bool {
	return p.attacks(p.kingSquare(side), side.Other())
}

// attacks reports whether any piece of attacker currently attacks sq.
func (p *Position) attacks(sq Square, attacker Side) bool {
	for i, j := range knightJumps {
		src := sq.add(-j.Row, -j.Col)
		if !src.Valid() {
			continue
		}
		pc := p.At(src)
		if pc.Type != Knight || pc.Side != attacker {
			continue
		}
		leg := src.add(legOf(i).Row, legOf(i).Col)
		if leg.Valid() && p.At(leg).Empty() {
			return true
		}
	}

	forward := int8(1)
	if attacker == Black {
		forward = -1
	}
	for _, dc := range [2]int8{-1, 1} {
		src := sq.add(0, dc)
		if src.Valid() && crossedRiver(src, attacker) {
			if pc := p.At(src); pc.Type == Pawn && pc.Side == attacker {
				return true
			}
		}
	}
	src := sq.add(forward, 0)
	if src.Valid() {
		if pc := p.At(src); pc.Type == Pawn && pc.Side == attacker {
			return true
		}
	}

	for _, d := range orthogonal {
		cur := sq
		screenFound := false
		for {
			cur = cur.add(d.Row, d.Col)
			if !cur.Valid() {
				break
			}
			occ := p.At(cur)
			if occ.Empty() {
				continue
			}
			if !screenFound {
				if occ.Side == attacker && (occ.Type == Rook || occ.Type == King) {
					return true
				}
				screenFound = true
				continue
			}
			if occ.Side == attacker && occ.Type == Cannon {
				return true
			}
			break
		}
	}
	return false
}

// LegalMoves returns PseudoMoves filtered to those that do not leave the
// mover's own king in check.
func (p *Position) LegalMoves() []Move {
	pseudo := p.PseudoMoves()
	legal := make([]Move, 0, len(pseudo))
	side := p.sideToMove
	for _, m := range pseudo {
		p.MakeMove(m)
		if !p.InCheck(side) {
			legal = append(legal, m)
		}
		p.UnmakeMove()
	}
	return legal
}

// Terminal reports whether the side to move has no legal moves: in
// Xiangqi both checkmate and stalemate are a loss for that side, so a
// terminal position always scores as a win for the other side.
func (p *Position) Terminal() (over bool, winner Side) {
	if len(p.LegalMoves()) == 0 {
		return true, p.sideToMove.Other()
	}
	return false, Red
}
