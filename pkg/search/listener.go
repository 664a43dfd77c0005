package search

import (
	"fmt"
	"sort"
	"time"

	"github.com/emc2314/cczero/internal/xiangqi"
)

// ThinkingInfo is the periodic progress snapshot spec.md §6 names,
// analogous to the teacher's ListenerTreeStats (pkg/mcts/stats_listener.go)
// but carrying PUCT-specific fields (principal variation, NPS) instead of
// UCB1's cycles-per-second-only view.
type ThinkingInfo struct {
	Depth      int
	Visits     int64
	TimeMs     int64
	Nps        int64
	Eval       float64
	PV         []xiangqi.Move
	ExtraLines []string // VerboseStats per-edge dump, only populated at completion
}

// BestMoveInfo is delivered exactly once per search, via the
// single-publisher completion path in search.go.
type BestMoveInfo struct {
	Move   xiangqi.Move
	Ponder xiangqi.Move
	Eval   float64
}

// ThinkingInfoFunc and BestMoveInfoFunc are the caller-supplied callbacks,
// matching the teacher's ListenerFunc shape (pkg/mcts/stats_listener.go)
// generalized to this engine's two distinct event kinds.
type ThinkingInfoFunc func(ThinkingInfo)
type BestMoveInfoFunc func(BestMoveInfo)

// infoCadence rate-limits ThinkingInfo emission using the (best-edge
// changed OR depth/nodes threshold OR min-interval) rule from SPEC_FULL.md
// §4.4, generalizing the teacher's plain SetCycleInterval throttle
// (pkg/mcts/stats_listener.go) which only had the nodes-threshold leg.
type infoCadence struct {
	minInterval  time.Duration
	nodesStep    int64
	lastEmit     time.Time
	lastNodes    int64
	lastBestEdge int
}

func newInfoCadence(minInterval time.Duration, nodesStep int64) *infoCadence {
	return &infoCadence{minInterval: minInterval, nodesStep: nodesStep, lastBestEdge: -1}
}

func (c *infoCadence) shouldEmit(now time.Time, nodes int64, bestEdge int) bool {
	if bestEdge != c.lastBestEdge {
		c.lastBestEdge = bestEdge
		c.lastEmit = now
		c.lastNodes = nodes
		return true
	}
	if now.Sub(c.lastEmit) >= c.minInterval {
		c.lastEmit = now
		c.lastNodes = nodes
		return true
	}
	if nodes-c.lastNodes >= c.nodesStep {
		c.lastNodes = nodes
		return true
	}
	return false
}

// verboseStatsLines renders one ThinkingInfo-shaped diagnostic line per
// root edge, sorted by visit count descending, per SPEC_FULL.md §4.5's
// concretization of VerboseStats.
func verboseStatsLines(root *Node) []string {
	type row struct {
		move   xiangqi.Move
		visits int32
		q      float64
		prior  float32
	}
	rows := make([]row, 0, len(root.Edges()))
	for i, e := range root.Edges() {
		r := row{move: e.Move, prior: e.Prior}
		if c := ChildAt(root, i); c != nil {
			r.visits = c.N()
			r.q = c.Q()
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].visits > rows[j].visits })

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, formatVerboseLine(r.move, r.visits, r.q, r.prior))
	}
	return lines
}

func formatVerboseLine(m xiangqi.Move, visits int32, q float64, prior float32) string {
	return fmt.Sprintf("%s visits=%d q=%.4f p=%.4f", m, visits, q, prior)
}
