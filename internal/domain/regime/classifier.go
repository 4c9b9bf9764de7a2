// Package regime classifies the market state from a benchmark trend filter
// and evaluates the emergency-brake conditions that force full liquidation.
package regime

import (
	"errors"
	"time"
)

// ErrInsufficientHistory indicates the benchmark series is shorter than the
// SMA period. Callers decide the safe default; the engine falls back to the
// conservative BEAR floor.
var ErrInsufficientHistory = errors.New("regime: insufficient benchmark history for trend filter")

// Label is the discrete market regime
type Label int

const (
	Bull Label = iota
	Bear
)

func (l Label) String() string {
	switch l {
	case Bear:
		return "BEAR"
	default:
		return "BULL"
	}
}

// MarshalText makes labels readable in persisted JSON state
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	switch string(text) {
	case "BEAR":
		*l = Bear
	case "BULL":
		*l = Bull
	default:
		return errors.New("regime: unknown label " + string(text))
	}
	return nil
}

// BrakeReason identifies which stress signal fired, highest priority first
type BrakeReason string

const (
	BrakeNone        BrakeReason = "NONE"
	BrakeVIX         BrakeReason = "VIX"
	BrakeBenchTrend  BrakeReason = "SPY_TREND"
	BrakeSectorShock BrakeReason = "SECTOR_SHOCK"
)

// BrakeEvent is the per-tick emergency-brake evaluation result
type BrakeEvent struct {
	Triggered bool        `json:"triggered"`
	Reason    BrakeReason `json:"reason"`
	Date      time.Time   `json:"date"`
}

// Signals carries the raw inputs for one classification tick
type Signals struct {
	BenchmarkCloses   []float64
	VIXLevel          float64
	SectorDailyReturn float64
	Date              time.Time
}

// Classification is the stateless classifier output before smoothing
type Classification struct {
	RawLabel       Label      `json:"raw_label"`
	BenchmarkClose float64    `json:"benchmark_close"`
	BenchmarkSMA   float64    `json:"benchmark_sma"`
	Brake          BrakeEvent `json:"brake"`
}

// ClassifierConfig holds the trend-filter and brake thresholds
type ClassifierConfig struct {
	SMAPeriod            int     `yaml:"sma_period"`             // Default: 200
	BrakeVIXThreshold    float64 `yaml:"brake_vix_threshold"`    // Default: 30
	BrakeSectorThreshold float64 `yaml:"brake_sector_threshold"` // Default: -0.05
}

// DefaultClassifierConfig returns the production thresholds
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		SMAPeriod:            200,
		BrakeVIXThreshold:    30.0,
		BrakeSectorThreshold: -0.05,
	}
}

// Classifier derives the raw regime label and brake state from market signals.
// Stateless given its inputs; it performs no persistence.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given thresholds
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify computes the raw label from the latest close vs the SMA and
// evaluates the brake. Returns ErrInsufficientHistory when the benchmark
// series is shorter than the SMA period; the brake can still be evaluated
// separately via EvaluateBrake in that case.
func (c *Classifier) Classify(sig Signals) (Classification, error) {
	if len(sig.BenchmarkCloses) < c.cfg.SMAPeriod {
		return Classification{}, ErrInsufficientHistory
	}

	latest := sig.BenchmarkCloses[len(sig.BenchmarkCloses)-1]
	sma := simpleMovingAverage(sig.BenchmarkCloses, c.cfg.SMAPeriod)

	label := Bull
	if latest < sma {
		label = Bear
	}

	return Classification{
		RawLabel:       label,
		BenchmarkClose: latest,
		BenchmarkSMA:   sma,
		Brake:          c.EvaluateBrake(sig),
	}, nil
}

// EvaluateBrake checks the liquidation triggers in priority order: VIX level,
// benchmark trend, sector shock. The trend condition is skipped when the
// benchmark history is too short to compute the SMA. Independent of the
// regime label; the trend check intentionally overlaps the BEAR
// classification because it serves both purposes.
func (c *Classifier) EvaluateBrake(sig Signals) BrakeEvent {
	event := BrakeEvent{Reason: BrakeNone, Date: sig.Date}

	if sig.VIXLevel > c.cfg.BrakeVIXThreshold {
		event.Triggered = true
		event.Reason = BrakeVIX
		return event
	}

	if len(sig.BenchmarkCloses) >= c.cfg.SMAPeriod {
		latest := sig.BenchmarkCloses[len(sig.BenchmarkCloses)-1]
		if latest < simpleMovingAverage(sig.BenchmarkCloses, c.cfg.SMAPeriod) {
			event.Triggered = true
			event.Reason = BrakeBenchTrend
			return event
		}
	}

	if sig.SectorDailyReturn < c.cfg.BrakeSectorThreshold {
		event.Triggered = true
		event.Reason = BrakeSectorShock
		return event
	}

	return event
}

func simpleMovingAverage(closes []float64, period int) float64 {
	var sum float64
	for _, v := range closes[len(closes)-period:] {
		sum += v
	}
	return sum / float64(period)
}
