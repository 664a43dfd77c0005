// Package search implements a parallel, PUCT-driven Monte Carlo Tree
// Search engine for Xiangqi, following spec.md's Node/Edge/NodeTree/
// SearchWorker/Search component design. It keeps the teacher library's
// (_examples/IlikeChooros-go-mcts) approach of atomic per-node counters and
// CAS-guarded lazy expansion, but replaces UCB1 rollout-MCTS with
// NN-driven PUCT search over a batched neural-network evaluator.
package search

import (
	"math"
	"sync/atomic"

	"github.com/emc2314/cczero/internal/xiangqi"
)

// Edge is a candidate move out of a Node, carrying the policy prior
// assigned by the NN. Edges are created once, in policy order, and never
// resized afterward (invariant (e)): RestrictEdges masks entries rather
// than removing them.
type Edge struct {
	Move  xiangqi.Move
	Prior float32

	restricted bool
}

// expandState mirrors the teacher's node.go CAS flags
// (CanExpand/ExpandingMask/ExpandedMask), guarding CreateEdges so exactly
// one worker runs the (possibly NN-blocking) expansion of a given node.
type expandState = uint32

const (
	canExpand expandState = 0
	expanding expandState = 1
	expanded  expandState = 2
)

// Node is one position in the shared search tree. Visit count, in-flight
// virtual loss and cumulative value are read/written only through atomics
// so that many SearchWorkers can descend and back up through the same
// node concurrently without a per-node mutex, exactly as
// pkg/mcts/node.go's NodeStats does for the teacher's UCB1 tree.
type Node struct {
	n         atomic.Int32
	nInFlight atomic.Int32
	wBits     atomic.Uint64 // float64 cumulative value, CAS-updated

	terminal      bool
	terminalValue float32 // valid only if terminal

	edges    []Edge
	children []atomic.Pointer[Node] // parallel to edges, lazily populated

	parent *Node
	fromIdx int // index of the edge in parent.edges that leads to this node; -1 for root

	state atomic.Uint32
}

// NewRootNode builds an unexpanded root. terminal/terminalValue describe
// the root position itself, matching spec.md's "Search never allocates
// the root" note being about the *tree*, not about this constructor,
// which NodeTree.resetRoot calls whenever the tree needs a fresh root.
func NewRootNode(terminal bool, terminalValue float32) *Node {
	return &Node{terminal: terminal, terminalValue: terminalValue, fromIdx: -1}
}

// newChildNode constructs a child of parent reached via parent.edges[idx].
func newChildNode(parent *Node, idx int, terminal bool, terminalValue float32) *Node {
	return &Node{parent: parent, fromIdx: idx, terminal: terminal, terminalValue: terminalValue}
}

// N returns the visit count.
func (node *Node) N() int32 { return node.n.Load() }

// NInFlight returns the current virtual-loss-in-flight count.
func (node *Node) NInFlight() int32 { return node.nInFlight.Load() }

// W returns the cumulative value sum.
func (node *Node) W() float64 {
	return math.Float64frombits(node.wBits.Load())
}

// Q returns the mean value (W/N) from the perspective of the side to move
// at this node, or 0 for an unvisited node.
func (node *Node) Q() float64 {
	n := node.N()
	if n == 0 {
		return 0
	}
	return node.W() / float64(n)
}

// virtualLossQ returns the virtual-loss-discounted mean value
// (W - NInFlight)/(N + NInFlight) that spec.md §4.1/§9 requires PUCT
// selection to read, so that a child with pending (not yet backed up)
// evaluations looks worse to every other concurrently descending worker,
// not merely more-explored. Returns 0 when the node has neither a real
// nor an in-flight visit.
func (node *Node) virtualLossQ() float64 {
	n := float64(node.N()) + float64(node.NInFlight())
	if n == 0 {
		return 0
	}
	return (node.W() - float64(node.NInFlight())) / n
}

// Terminal reports whether this node is a terminal position, and its
// fixed value if so.
func (node *Node) Terminal() (bool, float32) { return node.terminal, node.terminalValue }

// Edges returns the node's (possibly restricted) edge list. Callers must
// not mutate the returned slice's Move/Prior fields.
func (node *Node) Edges() []Edge { return node.edges }

// addW atomically adds delta to the cumulative value via CAS,
// mirroring the teacher's sumOutcomes.Add pattern but over float64 bits
// since Go has no atomic float add.
func (node *Node) addW(delta float64) {
	for {
		old := node.wBits.Load()
		sum := math.Float64frombits(old) + delta
		if node.wBits.CompareAndSwap(old, math.Float64bits(sum)) {
			return
		}
	}
}

// IncrementNInFlight applies virtual loss to this node, discouraging other
// concurrently descending workers from picking the same path before this
// worker's evaluation backs up a real result.
func (node *Node) IncrementNInFlight(amount int32) {
	node.nInFlight.Add(amount)
}

// CancelNInFlight undoes virtual loss applied by IncrementNInFlight,
// called when a collision meant this worker never actually reached the
// node (e.g. another worker is already expanding it).
func (node *Node) CancelNInFlight(amount int32) {
	node.nInFlight.Add(-amount)
}

// FinalizeScoreUpdate backs up one real visit with value (from this
// node's own side-to-move perspective) and removes the matching amount of
// virtual loss, in one call so a reader never observes N incremented
// without W, or virtual loss still applied after the real value landed.
func (node *Node) FinalizeScoreUpdate(value float64, virtualLoss int32) {
	node.addW(value)
	node.n.Add(1)
	node.nInFlight.Add(-virtualLoss)
}

// canExpandNode attempts to claim the right to run CreateEdges on this
// node. Only one concurrent caller succeeds.
func (node *Node) canExpandNode() bool {
	return node.state.CompareAndSwap(canExpand, expanding)
}

func (node *Node) finishExpanding() { node.state.Store(expanded) }

func (node *Node) isExpanding() bool { return node.state.Load() == expanding }

// IsExpanded reports whether CreateEdges has completed for this node.
func (node *Node) IsExpanded() bool { return node.state.Load() == expanded }

// CreateEdges installs the node's edge list from a policy distribution,
// applying a softmax-with-temperature over the raw priors and
// normalizing the result to sum to 1 (spec.md §4.1(b)/§4.2 stage 5's
// PolicySoftmaxTemp option): each prior is raised to 1/policySoftmaxTemp,
// so a temperature below 1 sharpens the distribution and one above 1
// flattens it. policySoftmaxTemp == 1 (or a non-positive value) degenerates
// to plain sum-normalization. Exactly one caller should win the canExpandNode race
// before calling this; it is not itself synchronized.
func CreateEdges(node *Node, moves []xiangqi.Move, priors []float32, policySoftmaxTemp float64) {
	edges := make([]Edge, len(moves))
	invTemp := 1.0
	if policySoftmaxTemp > 0 {
		invTemp = 1 / policySoftmaxTemp
	}

	weights := make([]float64, len(priors))
	var sum float64
	for i, p := range priors {
		w := math.Pow(math.Max(float64(p), 0), invTemp)
		weights[i] = w
		sum += w
	}
	if sum <= 0 {
		sum = float64(len(weights))
		for i := range weights {
			weights[i] = 1
		}
		if sum <= 0 {
			sum = 1
		}
	}
	for i, m := range moves {
		edges[i] = Edge{Move: m, Prior: float32(weights[i] / sum)}
	}
	node.edges = edges
	node.children = make([]atomic.Pointer[Node], len(edges))
}

// RestrictEdges marks every edge not present in allowed as permanently
// unselectable (Prior forced to 0, flagged) without resizing node.edges,
// implementing spec.md's searchmoves root restriction while preserving
// invariant (e) (edges are never resized after CreateEdges).
func RestrictEdges(node *Node, allowed []xiangqi.Move) {
	var sum float32
	keep := make([]bool, len(node.edges))
	for i := range node.edges {
		for _, m := range allowed {
			if node.edges[i].Move.Equal(m) {
				keep[i] = true
				sum += node.edges[i].Prior
				break
			}
		}
	}
	if sum <= 0 {
		sum = 1
	}
	for i := range node.edges {
		if keep[i] {
			node.edges[i].Prior /= sum
		} else {
			node.edges[i].Prior = 0
			node.edges[i].restricted = true
		}
	}
}

// GetOrSpawnChild returns the child reached via edges[idx], allocating it
// on first access. Concurrent callers racing on the same idx all get the
// same *Node: the loser's freshly-allocated Node is discarded.
func GetOrSpawnChild(node *Node, idx int, terminal bool, terminalValue float32) *Node {
	if existing := node.children[idx].Load(); existing != nil {
		return existing
	}
	fresh := newChildNode(node, idx, terminal, terminalValue)
	if node.children[idx].CompareAndSwap(nil, fresh) {
		return fresh
	}
	return node.children[idx].Load()
}

// ChildAt returns the already-spawned child at idx, or nil if it has
// never been visited.
func ChildAt(node *Node, idx int) *Node {
	return node.children[idx].Load()
}

const cpuctDefault = 2.5

// fpuValue computes the literal first-play-urgency baseline spec.md
// §4.1/§9 gives for parent's unvisited children: q_parent minus
// fpuReduction scaled by √(Σ priors of parent's already-visited
// children). q_parent is forced to 0 at the root (the root has no
// parent Q of its own to inherit — lc0's own FPU treatment, which this
// engine follows per original_source), and is parent.Q() otherwise.
func fpuValue(parent *Node, fpuReduction float64) float64 {
	qParent := 0.0
	if parent.parent != nil {
		qParent = parent.Q()
	}

	var visitedPriorSum float32
	for i := range parent.edges {
		if c := ChildAt(parent, i); c != nil && c.N() > 0 {
			visitedPriorSum += parent.edges[i].Prior
		}
	}
	return qParent - fpuReduction*math.Sqrt(float64(visitedPriorSum))
}

// puctScore computes the PUCT selection score for edges[idx] of parent.
// fpu is the already-computed first-play-urgency baseline (fpuValue),
// applied to edges whose child has no real visits yet (spec.md §4.1).
func puctScore(parent *Node, idx int, cpuct float32, fpu float64) float64 {
	edge := parent.edges[idx]
	if edge.restricted {
		return math.Inf(-1)
	}
	child := ChildAt(parent, idx)

	parentN := float64(parent.N()) + float64(parent.NInFlight())
	exploration := float64(cpuct) * float64(edge.Prior) * math.Sqrt(math.Max(parentN, 1))

	if child == nil || child.N() == 0 {
		return fpu + exploration
	}

	n := float64(child.N()) + float64(child.NInFlight())
	q := -child.virtualLossQ() // negate: child's Q is from the opponent's perspective
	return q + exploration/(1+n)
}

// SelectChild returns the index of node's highest-PUCT-score edge among
// non-restricted edges.
func SelectChild(node *Node, cpuct float32, fpuReduction float64) int {
	fpu := fpuValue(node, fpuReduction)
	best := -1
	bestScore := math.Inf(-1)
	for i := range node.edges {
		s := puctScore(node, i, cpuct, fpu)
		if s > bestScore {
			bestScore = s
			best = i
		}
	}
	return best
}

// TrimTreeAtHead detaches node from its parent, making it a fresh root.
// Used when a tree is reused across searches after the game advances past
// the old root.
func TrimTreeAtHead(node *Node) {
	node.parent = nil
	node.fromIdx = -1
}

// GetBestChildNoTemperature returns the edge index with the most real
// visits, the standard AlphaZero-style "play the most explored move"
// policy used once search has settled. Ties are broken by higher q (the
// child's evaluation from the parent's own perspective, -child.Q()),
// then by edge order (spec.md §4.5).
func GetBestChildNoTemperature(node *Node) int {
	best := -1
	var bestN int32 = -1
	bestQ := math.Inf(-1)
	for i := range node.edges {
		if node.edges[i].restricted {
			continue
		}
		n := int32(0)
		q := 0.0
		if c := ChildAt(node, i); c != nil {
			n = c.N()
			q = -c.Q()
		}
		if n > bestN || (n == bestN && q > bestQ) {
			bestN = n
			bestQ = q
			best = i
		}
	}
	return best
}

// GetBestChildWithTemperature samples an edge proportionally to
// visits^(1/temperature), the self-play move-selection policy from
// spec.md §4.5. temperature <= 0 falls back to
// GetBestChildNoTemperature. rnd must return a uniform value in [0,1).
func GetBestChildWithTemperature(node *Node, temperature float64, rnd func() float64) int {
	if temperature <= 0 {
		return GetBestChildNoTemperature(node)
	}

	weights := make([]float64, len(node.edges))
	var total float64
	for i := range node.edges {
		if node.edges[i].restricted {
			continue
		}
		n := float64(0)
		if c := ChildAt(node, i); c != nil {
			n = float64(c.N())
		}
		w := math.Pow(n, 1/temperature)
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return GetBestChildNoTemperature(node)
	}

	pick := rnd() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if pick < acc {
			return i
		}
	}
	return GetBestChildNoTemperature(node)
}
