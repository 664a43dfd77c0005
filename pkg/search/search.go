package search

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emc2314/cczero/internal/xiangqi"
	"github.com/emc2314/cczero/pkg/network"
	"github.com/emc2314/cczero/pkg/nncache"
	"github.com/rs/zerolog"
)

// Search orchestrates one bounded run of the parallel PUCT pipeline over
// a shared NodeTree: StartThreads spawns SearchWorkers, Stop/Abort give
// single-publisher completion, and IsSearchActive evaluates spec.md §4.4's
// limit/smart-pruning rules. Grounded on the teacher's MCTS struct
// (pkg/mcts/mcts.go) and Limiter (pkg/mcts/limiter.go), generalized from
// UCB1's single counters to an NN-batched PUCT pipeline.
//
// Lock ordering, per spec.md §5: nodesMutex is always acquired before
// countersMutex. nodesMutex is only ever held exclusively around the
// RestrictEdges call in applyRestrictedSearchMoves, before any worker
// starts; no pipeline stage holds it exclusively across a stage boundary.
type Search struct {
	tree         *NodeTree
	rootPosition *xiangqi.Position
	net          network.Network
	cache        *nncache.NNCache
	options      *SearchOptions
	limits       *Limits
	log          zerolog.Logger

	nodesMutex    sync.RWMutex
	countersMutex sync.Mutex

	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	stopFlag          atomic.Bool
	abortFlag         atomic.Bool
	respondedBestMove atomic.Bool

	iterations atomic.Int64
	collisions atomic.Int64
	lastNps    atomic.Int64
	lastErr    atomic.Pointer[SearchError]

	threadsMutex sync.Mutex
	wg           sync.WaitGroup
	started      bool

	cadence        *infoCadence
	thinkingInfoFn ThinkingInfoFunc
	bestMoveInfoFn BestMoveInfoFunc

	ponderMove xiangqi.Move
	plyForTemp int

	bestMoveOnce   sync.Once
	cachedBestMove xiangqi.Move
	cachedBestEval float64
}

// New builds a Search over tree using net for evaluation and cache for
// deduplicating NN calls, with options/limits following the teacher's
// Default.../Set* builder pattern. log defaults to zerolog.Nop() if the
// caller passes the zero Logger, keeping the library silent unless a
// caller opts in, matching SPEC_FULL.md's ambient-logging rule.
func New(tree *NodeTree, net network.Network, cache *nncache.NNCache, options *SearchOptions, limits *Limits, log zerolog.Logger) *Search {
	if options == nil {
		options = DefaultSearchOptions()
	}
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Search{
		tree:         tree,
		rootPosition: tree.History().Last().Clone(),
		net:          net,
		cache:        cache,
		options:      options,
		limits:       limits,
		log:          log,
		cadence:      newInfoCadence(200*time.Millisecond, 1000),
	}
}

// SetThinkingInfoFunc installs the ThinkingInfo callback.
func (s *Search) SetThinkingInfoFunc(f ThinkingInfoFunc) { s.thinkingInfoFn = f }

// SetBestMoveInfoFunc installs the BestMoveInfo callback.
func (s *Search) SetBestMoveInfoFunc(f BestMoveInfoFunc) { s.bestMoveInfoFn = f }

// SetPlyForTemperature tells the search how many plies into the game this
// move is, so Temperature decay via TempDecayMoves can take effect
// (spec.md §4.5).
func (s *Search) SetPlyForTemperature(ply int) { s.plyForTemp = ply }

// applyRestrictedSearchMoves installs searchmoves on the root before any
// worker starts, re-normalizing priors over the allowed subset when the
// root already has edges (spec.md §4.1 supplement), e.g. a tree reused
// from a prior search. If the root is not yet expanded, the restriction is
// deferred: FetchMinibatchResults applies it right after creating the
// root's edges.
func (s *Search) applyRestrictedSearchMoves() {
	if len(s.limits.SearchMoves) == 0 {
		return
	}
	root := s.tree.Root()
	if root.IsExpanded() {
		s.nodesMutex.Lock()
		RestrictEdges(root, s.limits.SearchMoves)
		s.nodesMutex.Unlock()
	}
}

// StartThreads spawns n SearchWorkers and returns immediately; call Wait
// or RunBlocking's own synchronous variant to block for completion.
// threadsMutex guards against a caller starting the same Search twice
// concurrently; it is never held across a worker's lifetime, only across
// this one-time setup.
func (s *Search) StartThreads(n int) {
	s.threadsMutex.Lock()
	defer s.threadsMutex.Unlock()
	if s.started {
		return
	}
	if n < 1 {
		n = 1
	}
	s.startTime = time.Now()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.applyRestrictedSearchMoves()
	s.started = true

	for id := 0; id < n; id++ {
		w := newSearchWorker(s, id)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.run()
		}()
	}
}

// RunBlocking starts n threads and blocks until they finish.
// RunSingleThreaded is an alias for RunBlocking(1) (resolved Open
// Question (a) in DESIGN.md): both ultimately call the same
// single-threaded worker loop, there being no behavioral difference
// between "one thread" and "the blocking single-thread entry point".
func (s *Search) RunBlocking(n int) {
	s.StartThreads(n)
	s.wg.Wait()
	s.finish()
}

// RunSingleThreaded is RunBlocking(1).
func (s *Search) RunSingleThreaded() {
	s.RunBlocking(1)
}

// Wait blocks until the search finishes or ctx is cancelled, in which
// case cancellation is treated as Abort() (SPEC_FULL.md §4.4 supplement;
// grounded on the teacher's Limiter.SetContext/context.Context usage,
// pkg/mcts/limiter.go).
func (s *Search) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.finish()
		return nil
	case <-ctx.Done():
		s.Abort()
		<-done
		return ctx.Err()
	}
}

func (s *Search) finish() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Stop requests a graceful halt: the search finishes its current
// iterations and the best move found so far is reported exactly once via
// BestMoveInfoFunc (single-publisher semantics via CAS on
// respondedBestMove, spec.md §5).
func (s *Search) Stop() {
	s.stopFlag.Store(true)
	if s.respondedBestMove.CompareAndSwap(false, true) {
		s.emitBestMove()
	}
}

// Abort requests an immediate halt and suppresses the BestMoveInfo
// callback entirely: cancellation is never reported as a result.
func (s *Search) Abort() {
	s.abortFlag.Store(true)
	s.stopFlag.Store(true)
	s.respondedBestMove.Store(true) // claim the slot so Stop() cannot also emit
}

// IsSearchActive reports whether workers should keep iterating.
func (s *Search) isSearchActive() bool {
	if s.stopFlag.Load() {
		return false
	}
	if s.ctx != nil {
		select {
		case <-s.ctx.Done():
			return false
		default:
		}
	}

	if over, _ := s.tree.Root().Terminal(); over {
		return false
	}

	if !s.limits.Infinite {
		root := s.tree.Root()
		if uint64(root.N()) >= s.limits.Visits {
			return false
		}
		if uint64(s.iterations.Load()) >= s.limits.Playouts {
			return false
		}
		if s.limits.MovetimeMs >= 0 && time.Since(s.startTime) >= time.Duration(s.limits.MovetimeMs)*time.Millisecond {
			return false
		}
	}

	if s.options.SmartPruning && s.smartPruningTriggered() {
		return false
	}
	return true
}

// smartPruningTriggered implements spec.md §4.4's early-stop rule: if the
// leading root move's visit lead over the runner-up already exceeds the
// remaining search budget, no further iteration can change the outcome.
func (s *Search) smartPruningTriggered() bool {
	if s.limits.Infinite {
		return false
	}
	root := s.tree.Root()
	var best, second int32
	count := 0
	for i := range root.edges {
		if root.edges[i].restricted {
			continue
		}
		count++
		n := int32(0)
		if c := ChildAt(root, i); c != nil {
			n = c.N()
		}
		if n > best {
			second = best
			best = n
		} else if n > second {
			second = n
		}
	}
	if count < 2 {
		return false
	}

	var remaining int64
	if s.limits.Visits != DefaultVisitsLimit {
		remaining = int64(s.limits.Visits) - int64(root.N())
	} else if s.limits.Playouts != DefaultPlayoutsLimit {
		remaining = int64(s.limits.Playouts) - s.iterations.Load()
	} else {
		return false
	}
	return int64(best-second) > remaining
}

// onIterationComplete is called by a worker's UpdateCounters stage after
// every minibatch, under countersMutex (acquired after nodesMutex per the
// lock-ordering rule, though this path never needs nodesMutex itself).
func (s *Search) onIterationComplete(batchSize int) {
	s.countersMutex.Lock()
	s.iterations.Add(int64(batchSize))
	elapsed := time.Since(s.startTime).Milliseconds()
	if elapsed > 0 {
		s.lastNps.Store(int64(s.tree.Root().N()) * 1000 / elapsed)
	}
	s.countersMutex.Unlock()
}

func (s *Search) reportError(err *SearchError) {
	s.lastErr.Store(err)
	s.log.Error().Err(err).Msg("search worker failed")
	s.Abort()
}

// LastError returns the most recent SearchError reported by a worker, if
// any. Cancellation is never surfaced here.
func (s *Search) LastError() *SearchError {
	return s.lastErr.Load()
}

// maybeEmitThinkingInfo fires ThinkingInfoFunc under the cadence rule
// (best-edge-changed OR nodes-threshold OR min-interval), spec.md §4.5.
func (s *Search) maybeEmitThinkingInfo() {
	if s.thinkingInfoFn == nil {
		return
	}
	root := s.tree.Root()
	bestEdge := GetBestChildNoTemperature(root)
	nodes := int64(root.N())
	now := time.Now()

	s.countersMutex.Lock()
	emit := s.cadence.shouldEmit(now, nodes, bestEdge)
	s.countersMutex.Unlock()
	if !emit {
		return
	}

	info := ThinkingInfo{
		Visits: nodes,
		TimeMs: time.Since(s.startTime).Milliseconds(),
		Nps:    s.lastNps.Load(),
	}
	if bestEdge >= 0 {
		info.PV = s.principalVariation(bestEdge)
		if c := ChildAt(root, bestEdge); c != nil {
			info.Eval = -c.Q()
		}
	}
	s.thinkingInfoFn(info)
}

// principalVariation walks the most-visited child chain starting at the
// root's bestEdge, returning the line of moves.
func (s *Search) principalVariation(bestEdge int) []xiangqi.Move {
	root := s.tree.Root()
	pv := []xiangqi.Move{root.edges[bestEdge].Move}
	node := ChildAt(root, bestEdge)
	for node != nil && node.IsExpanded() {
		idx := GetBestChildNoTemperature(node)
		if idx < 0 {
			break
		}
		pv = append(pv, node.edges[idx].Move)
		node = ChildAt(node, idx)
	}
	return pv
}

// GetBestMove returns the move to play, applying temperature decay via
// TempDecayMoves (spec.md §4.5): temperature is in effect for
// plyForTemp < TempDecayMoves, and GetBestChildNoTemperature afterward;
// a TempDecayMoves of 0 disables the decay, keeping temperature always on.
// The result is computed once, via bestMoveOnce, and memoized: repeated
// calls (e.g. from both Stop()'s emit path and an explicit caller query)
// always agree, even though GetBestChildWithTemperature's sampling would
// otherwise draw a different move on every call.
func (s *Search) GetBestMove() (xiangqi.Move, float64) {
	s.bestMoveOnce.Do(func() {
		s.cachedBestMove, s.cachedBestEval = s.computeBestMove()
	})
	return s.cachedBestMove, s.cachedBestEval
}

func (s *Search) computeBestMove() (xiangqi.Move, float64) {
	root := s.tree.Root()
	if over, value := root.Terminal(); over {
		return xiangqi.NullMove, float64(value)
	}

	temp := s.options.Temperature
	if s.options.TempDecayMoves > 0 && s.plyForTemp >= s.options.TempDecayMoves {
		temp = 0
	}

	idx := GetBestChildWithTemperature(root, temp, func() float64 {
		return rand.New(rand.NewSource(SeedGeneratorFn())).Float64()
	})
	if idx < 0 {
		return xiangqi.NullMove, 0
	}

	s.ponderMove = xiangqi.NullMove
	if c := ChildAt(root, idx); c != nil {
		if pidx := GetBestChildNoTemperature(c); pidx >= 0 {
			if gc := ChildAt(c, pidx); gc != nil {
				s.ponderMove = c.edges[pidx].Move
			}
		}
		return root.edges[idx].Move, -c.Q()
	}
	return root.edges[idx].Move, 0
}

// GetBestEval returns the evaluation of the current best move without
// selecting or memoizing anything, except for a terminal root, whose
// fixed value never changes search to search.
func (s *Search) GetBestEval() float64 {
	root := s.tree.Root()
	if over, value := root.Terminal(); over {
		return float64(value)
	}
	idx := GetBestChildNoTemperature(root)
	if idx < 0 {
		return 0
	}
	if c := ChildAt(root, idx); c != nil {
		return -c.Q()
	}
	return 0
}

// PonderMove returns the best grandchild move computed alongside
// GetBestMove, or NullMove if none was available.
func (s *Search) PonderMove() xiangqi.Move { return s.ponderMove }

func (s *Search) emitBestMove() {
	move, eval := s.GetBestMove()
	if s.options.VerboseStats && s.thinkingInfoFn != nil {
		s.thinkingInfoFn(ThinkingInfo{ExtraLines: verboseStatsLines(s.tree.Root())})
	}
	if s.abortFlag.Load() || s.bestMoveInfoFn == nil {
		return
	}
	s.bestMoveInfoFn(BestMoveInfo{Move: move, Ponder: s.ponderMove, Eval: eval})
}
