package xiangqi

import "testing"

func TestNewGameHasThirtyTwoPieces(t *testing.T) {
	p := NewGame()
	count := 0
	for r := int8(0); r < BoardRows; r++ {
		for c := int8(0); c < BoardCols; c++ {
			if !p.At(Square{Row: r, Col: c}).Empty() {
				count++
			}
		}
	}
	if count != 32 {
		t.Fatalf("expected 32 pieces on starting board, got %d", count)
	}
}

func TestStartingPositionHasNoChecksAndLegalMoves(t *testing.T) {
	p := NewGame()
	if p.InCheck(Red) || p.InCheck(Black) {
		t.Fatalf("starting position should have no checks")
	}
	moves := p.LegalMoves()
	if len(moves) == 0 {
		t.Fatalf("starting position should have legal moves")
	}
}

func TestMakeUnmakeMoveRestoresHash(t *testing.T) {
	p := NewGame()
	before := p.Hash()
	moves := p.LegalMoves()
	if len(moves) == 0 {
		t.Fatalf("no legal moves to test with")
	}
	p.MakeMove(moves[0])
	if p.Hash() == before {
		t.Fatalf("hash did not change after MakeMove")
	}
	p.UnmakeMove()
	if p.Hash() != before {
		t.Fatalf("hash not restored after UnmakeMove: got %d want %d", p.Hash(), before)
	}
}

func TestCannonMustJumpExactlyOneScreenToCapture(t *testing.T) {
	p := &Position{}
	p.board[5][4] = Piece{Type: Cannon, Side: Red}
	p.board[3][4] = Piece{Type: Pawn, Side: Black}
	p.sideToMove = Red
	p.hash = p.computeHash()

	moves := p.PseudoMoves()
	found := false
	for _, m := range moves {
		if m.To == (Square{Row: 3, Col: 4}) {
			found = true
		}
	}
	if found {
		t.Fatalf("cannon should not capture without a screen piece between")
	}

	p.board[4][4] = Piece{Type: Pawn, Side: Red}
	moves = p.PseudoMoves()
	found = false
	for _, m := range moves {
		if m.To == (Square{Row: 3, Col: 4}) {
			found = true
		}
	}
	if !found {
		t.Fatalf("cannon should capture by jumping exactly one screen piece")
	}
}

func TestBishopCannotCrossRiver(t *testing.T) {
	p := &Position{}
	p.board[9][5] = Piece{Type: King, Side: Red}
	p.board[5][3] = Piece{Type: Bishop, Side: Red}
	p.sideToMove = Red
	p.hash = p.computeHash()

	for _, m := range p.PseudoMoves() {
		if m.From == (Square{Row: 5, Col: 3}) && m.To.Row < riverRedRow {
			t.Fatalf("bishop move %v crossed the river", m)
		}
	}
}

func TestKnightLegBlocksJump(t *testing.T) {
	p := &Position{}
	p.board[9][5] = Piece{Type: King, Side: Red}
	p.board[5][4] = Piece{Type: Knight, Side: Red}
	p.board[4][4] = Piece{Type: Pawn, Side: Red}
	p.sideToMove = Red
	p.hash = p.computeHash()

	for _, m := range p.PseudoMoves() {
		if m.From == (Square{Row: 5, Col: 4}) && m.To == (Square{Row: 3, Col: 3}) {
			t.Fatalf("knight jump %v should be blocked by its own leg", m)
		}
	}
}

func TestTerminalWhenNoLegalMoves(t *testing.T) {
	p := &Position{}
	p.board[0][4] = Piece{Type: King, Side: Black}
	p.board[9][4] = Piece{Type: King, Side: Red}
	p.board[1][4] = Piece{Type: Rook, Side: Red}
	p.board[0][0] = Piece{Type: Rook, Side: Red}
	p.sideToMove = Black
	p.hash = p.computeHash()

	over, winner := p.Terminal()
	if !over {
		t.Fatalf("expected terminal position (mated king has no legal moves)")
	}
	if winner != Red {
		t.Fatalf("expected Red to win, got %v", winner)
	}
}

func TestPositionHistoryRepetitionDetection(t *testing.T) {
	h := NewHistory()
	moves := h.Last().LegalMoves()
	if len(moves) < 2 {
		t.Fatalf("need at least two legal moves to test repetition")
	}

	// Shuffle a rook out and back once while Black makes a different move:
	// no earlier position with the same side to move recurs yet.
	var out, back Move
	for _, m := range moves {
		if h.Last().At(m.From).Type == Rook {
			out = m
			break
		}
	}
	h.Append(out)
	reply := h.Last().LegalMoves()[0]
	h.Append(reply)
	for _, m := range h.Last().LegalMoves() {
		if m.To == out.From {
			back = m
			break
		}
	}
	h.Append(back)

	if h.IsRepetition() {
		t.Fatalf("should not detect a repetition after only returning the rook home")
	}
}

func TestCacheKeyStableAcrossHistoryLength(t *testing.T) {
	h := NewHistory()
	k0 := h.CacheKey(0)
	k2 := h.CacheKey(2)
	if k0 != h.Last().Hash() {
		t.Fatalf("CacheKey(0) should equal the bare position hash")
	}
	if k0 == k2 && h.Len() > 1 {
		t.Fatalf("CacheKey should differ when history length differs and history is non-trivial")
	}
}
