package allocate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize_NoCapsSumsToOne(t *testing.T) {
	eligible := []string{"A", "B", "C", "D", "E"}
	scores := map[string]float64{"A": 0.8, "B": 0.8, "C": 0.8, "D": 0.8, "E": 0.8}
	vols := map[string]float64{"A": 0.02, "B": 0.02, "C": 0.02, "D": 0.02, "E": 0.02}

	alloc, err := Optimize(eligible, scores, vols, 0.25)
	require.NoError(t, err)

	assert.Equal(t, MethodVolAdjustedTilt, alloc.Method)
	assert.Equal(t, 0, alloc.Iterations)
	assert.False(t, alloc.AllCapped)
	assert.InDelta(t, 1.0, alloc.Weights.Sum(), 1e-9)
	for s, w := range alloc.Weights {
		assert.InDelta(t, 0.20, w, 1e-9, "symbol %s", s)
	}
}

func TestOptimize_VolTiltOrdering(t *testing.T) {
	// Same score, double the volatility: half the weight
	eligible := []string{"CALM", "WILD"}
	scores := map[string]float64{"CALM": 0.8, "WILD": 0.8}
	vols := map[string]float64{"CALM": 0.02, "WILD": 0.04}

	alloc, err := Optimize(eligible, scores, vols, 0.9)
	require.NoError(t, err)

	assert.InDelta(t, 2.0/3.0, alloc.Weights["CALM"], 1e-9)
	assert.InDelta(t, 1.0/3.0, alloc.Weights["WILD"], 1e-9)
	assert.InDelta(t, 1.0, alloc.Weights.Sum(), 1e-9)
}

func TestOptimize_CapAndRedistribute(t *testing.T) {
	// Normalized weights 0.5, 0.3, 0.2: only A breaches a 0.4 cap; the
	// 0.1 excess spreads proportionally over B and C.
	eligible := []string{"A", "B", "C"}
	scores := map[string]float64{"A": 0.5, "B": 0.3, "C": 0.2}
	vols := map[string]float64{"A": 0.01, "B": 0.01, "C": 0.01}

	alloc, err := Optimize(eligible, scores, vols, 0.4)
	require.NoError(t, err)

	assert.Equal(t, 1, alloc.Iterations)
	assert.False(t, alloc.AllCapped)
	assert.InDelta(t, 0.4, alloc.Weights["A"], 1e-9)
	assert.InDelta(t, 0.3+0.1*0.3/0.5, alloc.Weights["B"], 1e-9)
	assert.InDelta(t, 0.2+0.1*0.2/0.5, alloc.Weights["C"], 1e-9)
	assert.InDelta(t, 1.0, alloc.Weights.Sum(), 1e-9)

	// Pre-cap normalized weights preserved for the audit trail
	assert.InDelta(t, 0.5, alloc.RawWeights["A"], 1e-9)
	assert.InDelta(t, 0.3, alloc.RawWeights["B"], 1e-9)
}

func TestOptimize_CascadingCaps(t *testing.T) {
	// Normalized 0.6, 0.2, 0.2 under a 0.25 cap: capping A pushes B and C
	// over the cap on the next pass, terminating with everything capped.
	eligible := []string{"A", "B", "C"}
	scores := map[string]float64{"A": 0.6, "B": 0.2, "C": 0.2}
	vols := map[string]float64{"A": 0.01, "B": 0.01, "C": 0.01}

	alloc, err := Optimize(eligible, scores, vols, 0.25)
	require.NoError(t, err)

	assert.True(t, alloc.AllCapped)
	assert.LessOrEqual(t, alloc.Iterations, len(eligible))
	for s, w := range alloc.Weights {
		assert.InDelta(t, 0.25, w, 1e-9, "symbol %s", s)
	}
}

func TestOptimize_SingleNameDegenerateCase(t *testing.T) {
	// A lone eligible name normalizes to 1.0, caps to 0.25, and has no
	// uncapped peer to absorb the excess: total 0.25, not 1.0.
	alloc, err := Optimize([]string{"A"}, map[string]float64{"A": 0.9}, map[string]float64{"A": 0.02}, 0.25)
	require.NoError(t, err)

	assert.True(t, alloc.AllCapped)
	assert.InDelta(t, 0.25, alloc.Weights["A"], 1e-9)
	assert.InDelta(t, 0.25, alloc.Weights.Sum(), 1e-9)
}

func TestOptimize_NeverExceedsCapUnlessAllCapped(t *testing.T) {
	eligible := []string{"A", "B", "C", "D", "E", "F"}
	scores := map[string]float64{"A": 0.95, "B": 0.9, "C": 0.6, "D": 0.55, "E": 0.52, "F": 0.5}
	vols := map[string]float64{"A": 0.01, "B": 0.015, "C": 0.05, "D": 0.06, "E": 0.07, "F": 0.08}

	alloc, err := Optimize(eligible, scores, vols, 0.25)
	require.NoError(t, err)

	assert.False(t, alloc.AllCapped)
	for s, w := range alloc.Weights {
		assert.LessOrEqual(t, w, 0.25+1e-9, "symbol %s", s)
	}
	assert.InDelta(t, 1.0, alloc.Weights.Sum(), 1e-9)
	assert.LessOrEqual(t, alloc.Iterations, len(eligible))
}

func TestOptimize_EmptyEligible(t *testing.T) {
	_, err := Optimize(nil, nil, nil, 0.25)
	assert.ErrorIs(t, err, ErrNoEligible)
}
