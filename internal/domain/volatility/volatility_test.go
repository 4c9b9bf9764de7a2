package volatility

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(closes ...float64) []PricePoint {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	points := make([]PricePoint, len(closes))
	for i, c := range closes {
		points[i] = PricePoint{Date: base.AddDate(0, 0, i), Close: c}
	}
	return points
}

func TestEstimate_KnownStdDev(t *testing.T) {
	// Returns are +10% and -10%: sample stddev = sqrt(2*0.01/1)
	est, err := NewEstimator(2).Estimate("AAPL", series(100, 110, 99))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", est.Symbol)
	assert.Equal(t, 2, est.SampleSize)
	assert.InDelta(t, math.Sqrt(0.02), est.Vol, 1e-12)
}

func TestEstimate_TrailingWindowOnly(t *testing.T) {
	// Early history is noise; the trailing two returns are +10%, -10%
	est, err := NewEstimator(2).Estimate("MSFT", series(50, 500, 5, 100, 110, 99))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.02), est.Vol, 1e-12)
}

func TestEstimate_InsufficientData(t *testing.T) {
	_, err := NewEstimator(30).Estimate("AAPL", series(100, 101, 102))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEstimate_ConstantSeriesInvalid(t *testing.T) {
	_, err := NewEstimator(3).Estimate("FLAT", series(100, 100, 100, 100, 100))
	assert.ErrorIs(t, err, ErrInvalidVolatility)
}

func TestEstimate_CorruptedSeriesInvalid(t *testing.T) {
	// A zero close corrupts the return series
	_, err := NewEstimator(3).Estimate("BAD", series(100, 0, 100, 105, 99))
	assert.ErrorIs(t, err, ErrInvalidVolatility)
}

func TestReturns_DropsFirstUndefined(t *testing.T) {
	returns := Returns(series(100, 110, 99))
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)

	assert.Nil(t, Returns(series(100)))
	assert.Nil(t, Returns(nil))
}

func TestEstimateUniverse_PartialFailures(t *testing.T) {
	prices := map[string][]PricePoint{
		"GOOD":  series(100, 110, 99, 105),
		"SHORT": series(100, 101),
		"FLAT":  series(100, 100, 100, 100),
	}

	estimates, failures := NewEstimator(2).EstimateUniverse(prices)

	require.Contains(t, estimates, "GOOD")
	assert.Greater(t, estimates["GOOD"].Vol, 0.0)

	assert.ErrorIs(t, failures["SHORT"], ErrInsufficientData)
	assert.ErrorIs(t, failures["FLAT"], ErrInvalidVolatility)
	assert.NotContains(t, estimates, "SHORT")
	assert.NotContains(t, estimates, "FLAT")
}
