package search

import (
	"math"

	"github.com/emc2314/cczero/internal/xiangqi"
)

// SearchOptions configures the engine's tree-building behavior, following
// the teacher's Limits/DefaultLimits() chainable-builder pattern
// (pkg/mcts/limits.go) rather than a plain struct literal, so options
// have documented defaults and validated setters in one place.
type SearchOptions struct {
	MiniBatchSize      int
	MaxPrefetchBatch   int
	Cpuct              float32
	Temperature        float64
	TempDecayMoves     int
	DirichletNoise     bool
	DirichletAlpha     float64
	DirichletFraction  float64
	FpuReduction       float64
	CacheHistoryLength int
	PolicySoftmaxTemp  float64
	VerboseStats       bool
	SmartPruning       bool
	AllowedCollisions  int
}

// DefaultSearchOptions mirrors values lc0 ships with (original_source), the
// nearest grounding for a Xiangqi/chess-scale PUCT engine.
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{
		MiniBatchSize:      32,
		MaxPrefetchBatch:   32,
		Cpuct:              cpuctDefault,
		Temperature:        0,
		TempDecayMoves:     0,
		DirichletNoise:     false,
		DirichletAlpha:     0.3,
		DirichletFraction:  0.25,
		FpuReduction:       0.2,
		CacheHistoryLength: 0,
		PolicySoftmaxTemp:  1,
		VerboseStats:       false,
		SmartPruning:       true,
		AllowedCollisions:  32,
	}
}

func (o *SearchOptions) SetMiniBatchSize(n int) *SearchOptions    { o.MiniBatchSize = max(1, n); return o }
func (o *SearchOptions) SetMaxPrefetchBatch(n int) *SearchOptions { o.MaxPrefetchBatch = max(0, n); return o }
func (o *SearchOptions) SetCpuct(c float32) *SearchOptions        { o.Cpuct = c; return o }
func (o *SearchOptions) SetTemperature(t float64) *SearchOptions  { o.Temperature = t; return o }
func (o *SearchOptions) SetTempDecayMoves(n int) *SearchOptions   { o.TempDecayMoves = n; return o }
func (o *SearchOptions) SetDirichletNoise(alpha, fraction float64) *SearchOptions {
	o.DirichletNoise = true
	o.DirichletAlpha = alpha
	o.DirichletFraction = fraction
	return o
}
func (o *SearchOptions) SetFpuReduction(v float64) *SearchOptions { o.FpuReduction = v; return o }
func (o *SearchOptions) SetCacheHistoryLength(n int) *SearchOptions {
	o.CacheHistoryLength = max(0, n)
	return o
}
func (o *SearchOptions) SetVerboseStats(v bool) *SearchOptions      { o.VerboseStats = v; return o }
func (o *SearchOptions) SetSmartPruning(v bool) *SearchOptions      { o.SmartPruning = v; return o }
func (o *SearchOptions) SetAllowedCollisions(n int) *SearchOptions  { o.AllowedCollisions = max(1, n); return o }

// Limits bounds how much work a single search may do, mirroring
// pkg/mcts/limits.go's field/Default/Set* shape with spec.md's own limit
// names (visits, playouts, time_ms, infinite, searchmoves) in place of
// the teacher's depth/byte-size limits (this engine has no generic
// memory-size cutoff; NNCache has its own fixed capacity instead).
type Limits struct {
	Visits      uint64
	Playouts    uint64
	MovetimeMs  int
	Infinite    bool
	SearchMoves []xiangqi.Move
}

const (
	DefaultVisitsLimit     uint64 = math.MaxUint64
	DefaultPlayoutsLimit   uint64 = math.MaxUint64
	DefaultMovetimeLimitMs int    = -1
)

// DefaultLimits returns an infinite search: the caller must explicitly
// bound it via SetVisits/SetPlayouts/SetMovetime or call Stop themselves.
func DefaultLimits() *Limits {
	return &Limits{
		Visits:     DefaultVisitsLimit,
		Playouts:   DefaultPlayoutsLimit,
		MovetimeMs: DefaultMovetimeLimitMs,
		Infinite:   true,
	}
}

func (l *Limits) SetVisits(n uint64) *Limits {
	l.Visits = n
	l.Infinite = false
	return l
}

func (l *Limits) SetPlayouts(n uint64) *Limits {
	l.Playouts = n
	l.Infinite = false
	return l
}

func (l *Limits) SetMovetime(ms int) *Limits {
	l.MovetimeMs = ms
	l.Infinite = false
	return l
}

func (l *Limits) SetInfinite(v bool) *Limits {
	l.Infinite = v
	return l
}

func (l *Limits) SetSearchMoves(moves []xiangqi.Move) *Limits {
	l.SearchMoves = moves
	return l
}
