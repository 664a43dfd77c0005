package search

import (
	"math/rand"

	"github.com/emc2314/cczero/internal/xiangqi"
	"github.com/emc2314/cczero/pkg/nncache"
)

// pendingEval is one leaf selected during GatherMinibatch, awaiting NN
// evaluation (or, for a terminal leaf, already holding its fixed value
// and needing no NN call at all).
type pendingEval struct {
	node     *Node
	terminal bool
	value    float32 // valid if terminal
	compIdx  int     // index into this worker's CachingComputation, if !terminal
}

// SearchWorker runs the 7-stage iteration pipeline of spec.md §4.2 against
// its Search's shared tree: Initialize, GatherMinibatch, MaybePrefetchIntoCache,
// RunNNComputation, FetchMinibatchResults, DoBackupUpdate, UpdateCounters.
// Where the teacher's Search function (pkg/mcts/search.go) fuses
// selection+rollout+backprop into one per-iteration loop body, the
// NN-batching requirement forces this into named stages: many leaves must
// be gathered before the single blocking NN call that evaluates them all
// at once.
type SearchWorker struct {
	search *Search
	id     int
	rng    *rand.Rand

	batch      []pendingEval
	comp       *nncache.CachingComputation
	collisions int
}

func newSearchWorker(s *Search, id int) *SearchWorker {
	return &SearchWorker{
		search: s,
		id:     id,
		rng:    rand.New(rand.NewSource(SeedGeneratorFn() + int64(id))),
	}
}

// run drives the worker's loop until the Search decides it's time to stop.
// The first worker to leave the loop without Stop/Abort having already
// claimed respondedBestMove publishes the final BestMoveInfo.
func (w *SearchWorker) run() {
	for w.search.isSearchActive() {
		w.Initialize()
		w.GatherMinibatch()
		w.MaybePrefetchIntoCache()
		if err := w.RunNNComputation(); err != nil {
			w.search.reportError(newSearchError(ErrBackendFailure, err))
			return
		}
		w.FetchMinibatchResults()
		w.DoBackupUpdate()
		w.UpdateCounters()
	}
	if w.search.respondedBestMove.CompareAndSwap(false, true) {
		w.search.emitBestMove()
	}
}

// Initialize resets this worker's per-iteration scratch state. Stage 1.
func (w *SearchWorker) Initialize() {
	w.batch = w.batch[:0]
	w.collisions = 0
	w.comp = nncache.NewCachingComputation(w.search.cache, w.search.net, w.search.options.CacheHistoryLength)
}

// GatherMinibatch repeatedly descends from the tree root via PUCT,
// applying virtual loss along the path, until it has collected
// MiniBatchSize leaves or exhausted the worker's collision budget. Stage 2.
func (w *SearchWorker) GatherMinibatch() {
	target := w.search.options.MiniBatchSize
	budget := w.search.options.AllowedCollisions

	for len(w.batch) < target {
		leaf, path, hitCollision := w.pickLeaf(w.search.tree.Root())
		if hitCollision {
			for _, n := range path {
				n.CancelNInFlight(VirtualLoss)
			}
			w.collisions++
			w.search.collisions.Add(1)
			if w.collisions >= budget {
				return // end the minibatch early: resolved Open Question (b)
			}
			continue
		}

		over, value := leaf.Terminal()
		pe := pendingEval{node: leaf, terminal: over, value: value}
		if !over {
			pe.compIdx = w.comp.BatchSize()
			w.comp.AddInput(w.historyAt(leaf))
		}
		w.batch = append(w.batch, pe)
	}
}

// pickLeaf descends root via SelectChild, returning the leaf reached, the
// path of nodes visited (for collision unwind), and whether a collision
// (another worker already expanding the same leaf) was hit.
func (w *SearchWorker) pickLeaf(root *Node) (*Node, []*Node, bool) {
	node := root
	root.IncrementNInFlight(VirtualLoss)
	path := []*Node{root}

	for {
		if node.terminal {
			return node, path, false
		}
		if !node.IsExpanded() {
			if node.canExpandNode() {
				return node, path, false
			}
			// Either another worker is still expanding node, or it just
			// finished between the IsExpanded() check above and this CAS
			// attempt. Re-checking IsExpanded() here (rather than treating
			// every CAS loss as a collision) lets the newly-expanded case
			// fall through into the selection step below instead of being
			// re-gathered as a leaf and clobbering the edges/children that
			// just got installed.
			if !node.IsExpanded() {
				return node, path, true
			}
		}

		idx := SelectChild(node, w.search.options.Cpuct, w.search.options.FpuReduction)
		if idx < 0 {
			return node, path, false
		}
		child := ChildAt(node, idx)
		if child == nil {
			over, draw, _ := w.historyAfter(node, idx)
			val := float32(0)
			if over && !draw {
				val = -1
			}
			child = GetOrSpawnChild(node, idx, over, val)
		}
		child.IncrementNInFlight(VirtualLoss)
		path = append(path, child)
		node = child
	}
}

// historyAfter replays the path from the tree root down to node.edges[idx]
// and reports whether the resulting child position is terminal (the
// PositionHistory.Terminal result), without mutating any shared state.
// This walks parent pointers back to the root and replays forward, since
// Node does not itself store a position.
func (w *SearchWorker) historyAfter(node *Node, idx int) (over, draw bool, winner xiangqi.Side) {
	moves := movesToRoot(node)
	moves = append(moves, node.edges[idx].Move)
	h := xiangqi.NewHistoryFrom(w.search.rootPosition.Clone())
	for _, m := range moves {
		h.Append(m)
	}
	return h.Terminal()
}

// historyAt returns the full PositionHistory ending at node, replayed
// from the search's fixed root position.
func (w *SearchWorker) historyAt(node *Node) *xiangqi.PositionHistory {
	moves := movesToRoot(node)
	h := xiangqi.NewHistoryFrom(w.search.rootPosition.Clone())
	for _, m := range moves {
		h.Append(m)
	}
	return h
}

// movesToRoot collects the sequence of moves from the tree root down to
// node by walking parent back-references, matching spec.md's "non-owning
// parent back-reference" data-model field.
func movesToRoot(node *Node) []xiangqi.Move {
	var rev []xiangqi.Move
	for n := node; n.parent != nil; n = n.parent {
		rev = append(rev, n.parent.edges[n.fromIdx].Move)
	}
	moves := make([]xiangqi.Move, len(rev))
	for i, m := range rev {
		moves[len(rev)-1-i] = m
	}
	return moves
}

// MaybePrefetchIntoCache queues up to MaxPrefetchBatch additional,
// speculative positions (the children of the gathered non-terminal
// leaves, one per legal move) into this worker's CachingComputation
// without creating any tree nodes for them, so a later minibatch that
// does want one of those positions may find it already cached. Stage 3.
func (w *SearchWorker) MaybePrefetchIntoCache() {
	budget := w.search.options.MaxPrefetchBatch
	if budget <= 0 {
		return
	}
	added := 0
	for _, pe := range w.batch {
		if pe.terminal || added >= budget {
			continue
		}
		hist := w.historyAt(pe.node)
		for _, m := range hist.Last().LegalMoves() {
			if added >= budget {
				break
			}
			sib := hist.Last().Clone()
			sib.MakeMove(m)
			w.comp.AddInput(xiangqi.NewHistoryFrom(sib))
			added++
		}
	}
}

// RunNNComputation is the sole mandatory blocking point in the pipeline:
// it evaluates every input added by GatherMinibatch and
// MaybePrefetchIntoCache (the cache has already served any hits). Stage 4.
func (w *SearchWorker) RunNNComputation() error {
	return w.comp.ComputeBlocking()
}

// FetchMinibatchResults installs edges (from the NN's policy head) on
// every non-terminal leaf gathered this iteration, restricting the root's
// edges to Limits.SearchMoves when any are set. Stage 5.
func (w *SearchWorker) FetchMinibatchResults() {
	for _, pe := range w.batch {
		if pe.terminal {
			continue
		}
		hist := w.historyAt(pe.node)
		legal := hist.Last().LegalMoves()
		priors := make([]float32, len(legal))
		for i, m := range legal {
			priors[i] = w.comp.GetPolicy(pe.compIdx, m)
		}
		CreateEdges(pe.node, legal, priors, w.search.options.PolicySoftmaxTemp)
		if pe.node == w.search.tree.Root() && len(w.search.limits.SearchMoves) > 0 {
			RestrictEdges(pe.node, w.search.limits.SearchMoves)
		}
		if w.search.options.DirichletNoise && pe.node == w.search.tree.Root() {
			mixDirichletNoise(pe.node, w.search.options.DirichletAlpha, w.search.options.DirichletFraction, w.rng)
		}
		pe.node.finishExpanding()
	}
}

// DoBackupUpdate walks from each leaf back to the root, applying
// FinalizeScoreUpdate at every node with the value negated once per ply
// (each ply flips whose perspective "value" is measured from). Stage 6.
func (w *SearchWorker) DoBackupUpdate() {
	for _, pe := range w.batch {
		value := float64(pe.value)
		if !pe.terminal {
			value = float64(w.comp.GetValue(pe.compIdx))
		}
		for n := pe.node; n != nil; n = n.parent {
			n.FinalizeScoreUpdate(value, VirtualLoss)
			value = -value
		}
	}
	w.comp.Release()
}

// UpdateCounters updates the nodes-per-second estimate and fires
// the rate-limited ThinkingInfo callback. Only the main-thread worker
// emits info, matching the teacher's "only main thread invokes the
// listener" rule (pkg/mcts/search.go). Stage 7.
func (w *SearchWorker) UpdateCounters() {
	w.search.onIterationComplete(len(w.batch))
	if w.id == mainThreadID {
		w.search.maybeEmitThinkingInfo()
	}
}
