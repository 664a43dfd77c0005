package search

import (
	"context"
	"testing"
	"time"

	"github.com/emc2314/cczero/internal/xiangqi"
	"github.com/emc2314/cczero/pkg/network"
	"github.com/emc2314/cczero/pkg/nncache"
	"github.com/rs/zerolog"
)

func newTestSearch(t *testing.T, visits uint64) (*Search, *NodeTree) {
	t.Helper()
	net, err := network.NewNetwork("check", nil)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	cache := nncache.New(1024, zerolog.Nop())
	tree := NewNodeTree()
	opts := DefaultSearchOptions().SetMiniBatchSize(4)
	limits := DefaultLimits().SetVisits(visits)
	s := New(tree, net, cache, opts, limits, zerolog.Nop())
	return s, tree
}

func TestSearchProducesALegalMove(t *testing.T) {
	s, tree := newTestSearch(t, 50)
	s.RunBlocking(2)

	move, _ := s.GetBestMove()
	if move == xiangqi.NullMove {
		t.Fatalf("expected a non-null best move")
	}
	found := false
	for _, m := range tree.History().Last().LegalMoves() {
		if m.Equal(move) {
			found = true
		}
	}
	if !found {
		t.Fatalf("best move %v is not among the root's legal moves", move)
	}
}

func TestVisitsLimitIsRespected(t *testing.T) {
	s, tree := newTestSearch(t, 20)
	s.RunBlocking(1)

	if got := tree.Root().N(); got < 20 {
		t.Fatalf("expected at least the requested visits, got %d", got)
	}
}

func TestStopEmitsBestMoveExactlyOnce(t *testing.T) {
	s, _ := newTestSearch(t, 0)
	s.limits.SetInfinite(true)

	var calls int
	s.SetBestMoveInfoFunc(func(BestMoveInfo) { calls++ })
	s.StartThreads(2)
	time.Sleep(5 * time.Millisecond)
	s.Stop()
	s.Stop() // second call must not re-emit
	s.wg.Wait()

	if calls != 1 {
		t.Fatalf("expected exactly one BestMoveInfo callback, got %d", calls)
	}
}

func TestAbortSuppressesBestMoveCallback(t *testing.T) {
	s, _ := newTestSearch(t, 0)
	s.limits.SetInfinite(true)

	var calls int
	s.SetBestMoveInfoFunc(func(BestMoveInfo) { calls++ })
	s.StartThreads(2)
	time.Sleep(5 * time.Millisecond)
	s.Abort()
	s.wg.Wait()

	if calls != 0 {
		t.Fatalf("expected Abort to suppress the BestMoveInfo callback, got %d calls", calls)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	s, _ := newTestSearch(t, 0)
	s.limits.SetInfinite(true)
	s.StartThreads(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatalf("expected Wait to return the context's error on cancellation")
	}
}

func TestTerminalRootNeverIterates(t *testing.T) {
	// Black's king is boxed in on its back rank with no legal reply to
	// the two red rooks controlling its file and rank: the same mated
	// position internal/xiangqi's own TestTerminalWhenNoLegalMoves uses,
	// built here via the external xiangqi.NewFromPieces constructor since
	// Position's fields are unexported outside that package.
	mated := xiangqi.NewFromPieces(map[xiangqi.Square]xiangqi.Piece{
		{Row: 0, Col: 4}: {Type: xiangqi.King, Side: xiangqi.Black},
		{Row: 9, Col: 4}: {Type: xiangqi.King, Side: xiangqi.Red},
		{Row: 1, Col: 4}: {Type: xiangqi.Rook, Side: xiangqi.Red},
		{Row: 0, Col: 0}: {Type: xiangqi.Rook, Side: xiangqi.Red},
	}, xiangqi.Black)

	tree := NewNodeTreeFromHistory(xiangqi.NewHistoryFrom(mated))
	net, _ := network.NewNetwork("check", nil)
	cache := nncache.New(16, zerolog.Nop())
	s := New(tree, net, cache, DefaultSearchOptions(), DefaultLimits().SetVisits(1000), zerolog.Nop())

	s.RunBlocking(2)

	if got := s.tree.Root().N(); got != 0 {
		t.Fatalf("a terminal root should never accumulate a real visit, got %d", got)
	}

	move, eval := s.GetBestMove()
	if move != xiangqi.NullMove {
		t.Fatalf("expected an empty best move for a terminal root, got %v", move)
	}
	if eval != -1 {
		t.Fatalf("expected the terminal loss value (-1) for the mated side, got %v", eval)
	}
	if got := s.GetBestEval(); got != -1 {
		t.Fatalf("GetBestEval should also report the terminal value, got %v", got)
	}
}

func TestSmartPruningTriggersWhenLeadIsInsurmountable(t *testing.T) {
	s, tree := newTestSearch(t, 1000)
	root := tree.Root()
	CreateEdges(root, sampleMoves(3), []float32{1, 1, 1}, 1)

	leader := GetOrSpawnChild(root, 0, false, 0)
	for i := 0; i < 900; i++ {
		leader.FinalizeScoreUpdate(0, 0)
	}
	runnerUp := GetOrSpawnChild(root, 1, false, 0)
	for i := 0; i < 10; i++ {
		runnerUp.FinalizeScoreUpdate(0, 0)
	}
	for i := 0; i < 910; i++ {
		root.FinalizeScoreUpdate(0, 0)
	}

	if !s.smartPruningTriggered() {
		t.Fatalf("expected smart pruning to trigger once the lead exceeds the remaining visit budget")
	}
}

func TestSmartPruningDoesNotTriggerWithACloseRace(t *testing.T) {
	s, tree := newTestSearch(t, 1000)
	root := tree.Root()
	CreateEdges(root, sampleMoves(3), []float32{1, 1, 1}, 1)

	leader := GetOrSpawnChild(root, 0, false, 0)
	leader.FinalizeScoreUpdate(0, 0)
	runnerUp := GetOrSpawnChild(root, 1, false, 0)
	runnerUp.FinalizeScoreUpdate(0, 0)
	root.FinalizeScoreUpdate(0, 0)
	root.FinalizeScoreUpdate(0, 0)

	if s.smartPruningTriggered() {
		t.Fatalf("did not expect smart pruning to trigger with a near-tied race and ample budget remaining")
	}
}
