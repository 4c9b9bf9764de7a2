// Package metrics exposes the allocator's Prometheus instrumentation.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/sawpanic/alphatilt/internal/domain/regime"
)

// Registry holds every allocator metric
type Registry struct {
	TickOutcomes  *prometheus.CounterVec
	TickDuration  prometheus.Histogram
	RegimeFlips   *prometheus.CounterVec
	ActiveRegime  prometheus.Gauge
	ScoreFloor    prometheus.Gauge
	BrakeTriggers *prometheus.CounterVec
	EligibleCount prometheus.Gauge

	prom *prometheus.Registry
}

// NewRegistry creates and registers all allocator metrics on a dedicated
// Prometheus registry
func NewRegistry() *Registry {
	r := &Registry{
		TickOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphatilt_tick_outcomes_total",
				Help: "Tick results by outcome",
			},
			[]string{"outcome"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alphatilt_tick_duration_seconds",
				Help:    "Duration of one evaluation tick",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),
		RegimeFlips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphatilt_regime_flips_total",
				Help: "Effective regime transitions",
			},
			[]string{"from", "to"},
		),
		ActiveRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alphatilt_active_regime",
				Help: "Effective regime (0=BULL, 1=BEAR)",
			},
		),
		ScoreFloor: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alphatilt_score_floor",
				Help: "Current regime-dependent eligibility score floor",
			},
		),
		BrakeTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphatilt_brake_triggers_total",
				Help: "Emergency brake activations by reason",
			},
			[]string{"reason"},
		),
		EligibleCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alphatilt_eligible_symbols",
				Help: "Eligible symbol count at the last rebalance",
			},
		),
		prom: prometheus.NewRegistry(),
	}

	r.prom.MustRegister(
		r.TickOutcomes,
		r.TickDuration,
		r.RegimeFlips,
		r.ActiveRegime,
		r.ScoreFloor,
		r.BrakeTriggers,
		r.EligibleCount,
	)

	return r
}

// Gatherer exposes the underlying registry for the /metrics endpoint
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}

// RecordTick records one tick outcome and its duration
func (r *Registry) RecordTick(outcome string, elapsed time.Duration) {
	r.TickOutcomes.WithLabelValues(outcome).Inc()
	r.TickDuration.Observe(elapsed.Seconds())
}

// RecordRegime updates the regime gauges and counts effective transitions
func (r *Registry) RecordRegime(prev *regime.State, current regime.State) {
	if current.Label == regime.Bear {
		r.ActiveRegime.Set(1)
	} else {
		r.ActiveRegime.Set(0)
	}
	r.ScoreFloor.Set(current.ScoreFloor)

	if prev != nil && prev.Label != current.Label {
		r.RegimeFlips.WithLabelValues(prev.Label.String(), current.Label.String()).Inc()
	}
}

// RecordBrake counts a brake activation
func (r *Registry) RecordBrake(reason regime.BrakeReason) {
	r.BrakeTriggers.WithLabelValues(string(reason)).Inc()
}

// Snapshot gathers current counter and gauge values keyed by family name,
// for the status endpoint and tests
func (r *Registry) Snapshot() (map[string]float64, error) {
	families, err := r.prom.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64, len(families))
	for _, family := range families {
		var total float64
		for _, m := range family.GetMetric() {
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				total += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				total += m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		out[family.GetName()] = total
	}
	return out, nil
}
