// Package application orchestrates one evaluation tick: regime
// classification, persistence filtering, the emergency brake, the weekly
// rebalance lock, eligibility, weight optimization, and state persistence.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/alphatilt/internal/artifacts"
	"github.com/sawpanic/alphatilt/internal/cache"
	"github.com/sawpanic/alphatilt/internal/config"
	"github.com/sawpanic/alphatilt/internal/domain/allocate"
	"github.com/sawpanic/alphatilt/internal/domain/eligibility"
	"github.com/sawpanic/alphatilt/internal/domain/regime"
	"github.com/sawpanic/alphatilt/internal/domain/volatility"
	"github.com/sawpanic/alphatilt/internal/metrics"
	"github.com/sawpanic/alphatilt/internal/persistence"
	"github.com/sawpanic/alphatilt/internal/scheduler"
)

// Outcome is the per-tick result signal the caller can branch on
type Outcome string

const (
	OutcomeOptimized   Outcome = "OPTIMIZED"
	OutcomeFallback    Outcome = "FALLBACK"
	OutcomeBrakeCash   Outcome = "BRAKE_CASH"
	OutcomeMonitorNoop Outcome = "MONITOR_ONLY_NOOP"
)

var (
	// ErrNoInputs indicates the caller supplied neither scores nor benchmark
	// history; the only fatal input condition
	ErrNoInputs = errors.New("application: no inputs supplied for tick")

	// ErrEmptyScoreSet indicates the rebalance window opened with zero scored
	// symbols, leaving even the fallback nothing to select from
	ErrEmptyScoreSet = errors.New("application: empty score set at rebalance")
)

// TickInput carries the externally materialized inputs for one evaluation.
// Loading them is the caller's concern; the engine performs no I/O beyond
// the state store and artifacts.
type TickInput struct {
	AsOf              time.Time
	Scores            map[string]float64
	Prices            map[string][]volatility.PricePoint
	BenchmarkCloses   []float64
	VIXLevel          float64
	SectorDailyReturn float64
}

// TickResult reports what the tick decided and persisted
type TickResult struct {
	Outcome    Outcome
	State      *persistence.PortfolioTargetState
	Status     persistence.RegimeStatus
	Selection  *eligibility.Selection
	Allocation *allocate.Allocation
	AuditPath  string
}

// Engine runs single-threaded, single-tick batch computations. Concurrent
// ticks are not supported; external scheduling must keep at most one in
// flight.
type Engine struct {
	cfg        config.Config
	store      persistence.Store
	lock       *scheduler.WeeklyLock
	classifier *regime.Classifier
	filter     *regime.Filter
	estimator  *volatility.Estimator
	writer     *artifacts.Writer
	metrics    *metrics.Registry
	status     *cache.StatusCache
}

// Option configures optional engine collaborators
type Option func(*Engine)

// WithArtifacts enables audit artifact output
func WithArtifacts(w *artifacts.Writer) Option {
	return func(e *Engine) { e.writer = w }
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStatusCache enables the Redis regime-status publisher
func WithStatusCache(c *cache.StatusCache) Option {
	return func(e *Engine) { e.status = c }
}

// NewEngine wires an engine from validated configuration and a state store
func NewEngine(cfg config.Config, store persistence.Store, opts ...Option) (*Engine, error) {
	weekday, err := cfg.Schedule.Weekday()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		store: store,
		lock:  scheduler.NewWeeklyLock(weekday),
		classifier: regime.NewClassifier(regime.ClassifierConfig{
			SMAPeriod:            cfg.Regime.SMAPeriod,
			BrakeVIXThreshold:    cfg.Regime.BrakeVIXThreshold,
			BrakeSectorThreshold: cfg.Regime.BrakeSectorThreshold,
		}),
		filter:    regime.NewFilter(cfg.Regime.ScoreFloorBull, cfg.Regime.ScoreFloorBear),
		estimator: volatility.NewEstimator(cfg.Allocator.VolWindow),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunTick executes one evaluation. A fatal error leaves the previously
// persisted portfolio state untouched; per-symbol data problems only exclude
// the affected symbol.
func (e *Engine) RunTick(ctx context.Context, in TickInput) (*TickResult, error) {
	started := time.Now()

	if len(in.Scores) == 0 && len(in.BenchmarkCloses) == 0 {
		return nil, ErrNoInputs
	}

	prevPortfolio, err := e.store.LoadPortfolio(ctx)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("load portfolio state: %w", err)
	}

	prevStatus, err := e.store.LoadRegime(ctx)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("load regime state: %w", err)
	}

	status := e.classifyTick(in, prevStatus)
	if err := e.store.SaveRegime(ctx, status); err != nil {
		return nil, fmt.Errorf("save regime state: %w", err)
	}
	e.publishStatus(ctx, status, prevStatus)

	var lockedUntil time.Time
	if prevPortfolio != nil {
		lockedUntil = prevPortfolio.LockedUntil
	}
	window := e.lock.Window(in.AsOf, lockedUntil)

	result := &TickResult{Status: status, State: prevPortfolio}

	switch {
	case status.Brake.Triggered:
		// Brake overrides everything and is permitted mid-week: force the
		// cash vector and re-lock until the next rebalance boundary.
		if err := e.applyBrake(ctx, in, status, result); err != nil {
			return nil, err
		}

	case window == scheduler.MonitorOnly:
		result.Outcome = OutcomeMonitorNoop

	default:
		if err := e.rebalance(ctx, in, status, result); err != nil {
			return nil, err
		}
	}

	if e.metrics != nil {
		e.metrics.RecordTick(string(result.Outcome), time.Since(started))
	}

	log.Info().
		Str("outcome", string(result.Outcome)).
		Str("regime", status.State.Label.String()).
		Str("raw_regime", status.State.RawLabel.String()).
		Int("consecutive", status.State.ConsecutiveCount).
		Bool("brake", status.Brake.Triggered).
		Time("as_of", in.AsOf).
		Msg("tick complete")

	return result, nil
}

// classifyTick produces the filtered regime state and brake event for this
// tick. Insufficient benchmark history falls back to a conservative BEAR raw
// label while the brake is still evaluated from the signals that remain.
func (e *Engine) classifyTick(in TickInput, prevStatus *persistence.RegimeStatus) persistence.RegimeStatus {
	signals := regime.Signals{
		BenchmarkCloses:   in.BenchmarkCloses,
		VIXLevel:          in.VIXLevel,
		SectorDailyReturn: in.SectorDailyReturn,
		Date:              in.AsOf,
	}

	var raw regime.Label
	var brake regime.BrakeEvent

	cls, err := e.classifier.Classify(signals)
	if errors.Is(err, regime.ErrInsufficientHistory) {
		raw = regime.Bear
		brake = e.classifier.EvaluateBrake(signals)
		log.Warn().
			Int("observations", len(in.BenchmarkCloses)).
			Int("required", e.cfg.Regime.SMAPeriod).
			Msg("benchmark history too short, defaulting raw regime to BEAR")
	} else {
		raw = cls.RawLabel
		brake = cls.Brake
	}

	var prevState regime.State
	if prevStatus != nil {
		prevState = prevStatus.State
	}
	state := e.filter.Update(prevState, raw)

	return persistence.RegimeStatus{AsOf: in.AsOf, State: state, Brake: brake}
}

func (e *Engine) applyBrake(ctx context.Context, in TickInput, status persistence.RegimeStatus, result *TickResult) error {
	universe := make([]string, 0, len(in.Scores))
	for symbol := range in.Scores {
		universe = append(universe, symbol)
	}
	if result.State != nil {
		for symbol := range result.State.Weights {
			if _, scored := in.Scores[symbol]; !scored {
				universe = append(universe, symbol)
			}
		}
	}

	alloc := allocate.Cash(universe)
	state := persistence.PortfolioTargetState{
		AsOf:        in.AsOf,
		Weights:     alloc.Weights,
		Regime:      status.State,
		LockedUntil: e.lock.NextBoundary(in.AsOf),
		Method:      alloc.Method,
	}

	if err := e.store.SavePortfolio(ctx, state); err != nil {
		return fmt.Errorf("save brake state: %w", err)
	}

	result.Outcome = OutcomeBrakeCash
	result.State = &state
	result.Allocation = &alloc

	if e.metrics != nil {
		e.metrics.RecordBrake(status.Brake.Reason)
	}
	log.Warn().
		Str("reason", string(status.Brake.Reason)).
		Time("locked_until", state.LockedUntil).
		Msg("emergency brake triggered, portfolio moved to cash")

	e.writeAudit(in, status, alloc, nil, result)
	return nil
}

func (e *Engine) rebalance(ctx context.Context, in TickInput, status persistence.RegimeStatus, result *TickResult) error {
	if len(in.Scores) == 0 {
		return ErrEmptyScoreSet
	}

	scored := make(map[string][]volatility.PricePoint, len(in.Scores))
	for symbol := range in.Scores {
		scored[symbol] = in.Prices[symbol]
	}
	vols, volErrs := e.estimator.EstimateUniverse(scored)
	for symbol, err := range volErrs {
		log.Debug().Str("symbol", symbol).Err(err).Msg("symbol excluded from eligibility")
	}

	var alloc allocate.Allocation
	sel, selErr := eligibility.Select(in.Scores, vols, e.cfg.Allocator.TopQuantile, status.State.ScoreFloor)
	switch {
	case errors.Is(selErr, eligibility.ErrEmptyScoreSet):
		return ErrEmptyScoreSet
	case selErr != nil && !errors.Is(selErr, eligibility.ErrQuantileUndefined):
		return fmt.Errorf("eligibility selection: %w", selErr)
	case errors.Is(selErr, eligibility.ErrQuantileUndefined) || len(sel.Eligible) == 0:
		// Tick-level conditions never fail the tick; the fallback keeps the
		// system live on the top-scored names.
		var err error
		alloc, err = allocate.Fallback(in.Scores, e.cfg.Allocator.FallbackK)
		if err != nil {
			return ErrEmptyScoreSet
		}
		result.Outcome = OutcomeFallback
		if selErr == nil {
			result.Selection = &sel
		}
	default:
		volValues := make(map[string]float64, len(vols))
		for symbol, est := range vols {
			volValues[symbol] = est.Vol
		}
		var err error
		alloc, err = allocate.Optimize(sel.Eligible, in.Scores, volValues, e.cfg.Allocator.MaxWeight)
		if err != nil {
			return fmt.Errorf("weight optimization: %w", err)
		}
		result.Outcome = OutcomeOptimized
		result.Selection = &sel
	}

	state := persistence.PortfolioTargetState{
		AsOf:        in.AsOf,
		Weights:     alloc.Weights,
		Regime:      status.State,
		LockedUntil: e.lock.NextBoundary(in.AsOf),
		Method:      alloc.Method,
	}
	if err := e.store.SavePortfolio(ctx, state); err != nil {
		return fmt.Errorf("save portfolio state: %w", err)
	}

	result.State = &state
	result.Allocation = &alloc

	if e.metrics != nil {
		e.metrics.EligibleCount.Set(float64(len(sel.Eligible)))
	}

	e.writeAudit(in, status, alloc, vols, result)
	return nil
}

// writeAudit emits artifacts on a best-effort basis: a failed artifact write
// never fails a tick whose state was already persisted.
func (e *Engine) writeAudit(in TickInput, status persistence.RegimeStatus, alloc allocate.Allocation, vols map[string]volatility.Estimate, result *TickResult) {
	if e.writer == nil {
		return
	}

	symbols := make(map[string]artifacts.SymbolDetail, len(in.Scores))
	for symbol, score := range in.Scores {
		detail := artifacts.SymbolDetail{Score: score}
		if est, ok := vols[symbol]; ok {
			detail.Vol = est.Vol
		}
		if raw, ok := alloc.RawWeights[symbol]; ok {
			detail.RawWeight = raw
		}
		if result.Selection != nil {
			if reason, ok := result.Selection.Excluded[symbol]; ok {
				detail.Excluded = reason
			}
		}
		symbols[symbol] = detail
	}

	audit := artifacts.AllocationAudit{
		ID:         artifacts.NewAuditID(),
		AsOf:       in.AsOf,
		Outcome:    string(result.Outcome),
		Method:     alloc.Method,
		Params: artifacts.Params{
			TopQuantile: e.cfg.Allocator.TopQuantile,
			ScoreFloor:  status.State.ScoreFloor,
			MaxWeight:   e.cfg.Allocator.MaxWeight,
			VolWindow:   e.cfg.Allocator.VolWindow,
		},
		Weights:    alloc.Weights,
		Symbols:    symbols,
		Regime:     status.State,
		Brake:      status.Brake,
		Iterations: alloc.Iterations,
		AllCapped:  alloc.AllCapped,
	}

	path, err := e.writer.WriteAudit(audit)
	if err != nil {
		log.Warn().Err(err).Msg("audit artifact write failed")
		return
	}
	result.AuditPath = path

	targets := artifacts.TargetWeights{AsOf: in.AsOf, Weights: alloc.Weights}
	if _, err := e.writer.WriteTargets(targets); err != nil {
		log.Warn().Err(err).Msg("target weights artifact write failed")
	}
	if _, err := e.writer.WriteWeightsCSV(targets); err != nil {
		log.Warn().Err(err).Msg("weights csv write failed")
	}
}

// publishStatus updates metrics and the optional Redis cache; both are
// best-effort observability surfaces.
func (e *Engine) publishStatus(ctx context.Context, status persistence.RegimeStatus, prev *persistence.RegimeStatus) {
	if e.metrics != nil {
		var prevState *regime.State
		if prev != nil {
			prevState = &prev.State
		}
		e.metrics.RecordRegime(prevState, status.State)
	}
	if e.status != nil {
		if err := e.status.Publish(ctx, status); err != nil {
			log.Warn().Err(err).Msg("status cache publish failed")
		}
	}
}
