// Package eligibility selects the instrument set allowed into the optimizer:
// score above a dynamic cross-sectional threshold, valid volatility estimate.
package eligibility

import (
	"errors"
	"math"
	"sort"

	"github.com/sawpanic/alphatilt/internal/domain/volatility"
)

var (
	// ErrEmptyScoreSet indicates no scored symbols were presented at all
	ErrEmptyScoreSet = errors.New("eligibility: empty score set")

	// ErrQuantileUndefined indicates fewer than two distinct scores
	ErrQuantileUndefined = errors.New("eligibility: fewer than two distinct scores")
)

// Exclusion reasons recorded per symbol for the audit artifact
const (
	ReasonBelowThreshold = "score_below_threshold"
	ReasonNoVolatility   = "invalid_volatility"
)

// Selection is the per-tick eligibility result
type Selection struct {
	Eligible           []string          `json:"eligible"` // sorted for determinism
	ScoreThreshold     float64           `json:"score_threshold"`
	EffectiveThreshold float64           `json:"effective_threshold"`
	Excluded           map[string]string `json:"excluded"` // symbol -> reason
}

// Select computes the dynamic score threshold from the cross-sectional score
// distribution, raises it to the regime floor, and admits symbols that are
// strictly above the effective threshold and carry a valid volatility
// estimate. The floor is an explicit caller decision; there is no implicit
// default hiding in the call chain.
func Select(scores map[string]float64, vols map[string]volatility.Estimate, topQuantile, scoreFloor float64) (Selection, error) {
	if len(scores) == 0 {
		return Selection{}, ErrEmptyScoreSet
	}

	values := make([]float64, 0, len(scores))
	for _, s := range scores {
		values = append(values, s)
	}
	sort.Float64s(values)

	if distinctCount(values) < 2 {
		return Selection{}, ErrQuantileUndefined
	}

	threshold := Quantile(values, topQuantile)
	effective := math.Max(threshold, scoreFloor)

	sel := Selection{
		ScoreThreshold:     threshold,
		EffectiveThreshold: effective,
		Excluded:           make(map[string]string),
	}

	symbols := make([]string, 0, len(scores))
	for symbol := range scores {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		if scores[symbol] <= effective {
			sel.Excluded[symbol] = ReasonBelowThreshold
			continue
		}
		if _, ok := vols[symbol]; !ok {
			sel.Excluded[symbol] = ReasonNoVolatility
			continue
		}
		sel.Eligible = append(sel.Eligible, symbol)
	}

	return sel, nil
}

// Quantile computes the q-quantile of sorted values with linear interpolation
// of the empirical CDF: rank q*n on a one-based scale, interpolated between
// the closest ranks. Deterministic across runs for identical input; values
// must be sorted ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	pos := q*float64(n) - 1
	if pos <= 0 {
		return sorted[0]
	}
	if pos >= float64(n-1) {
		return sorted[n-1]
	}

	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func distinctCount(sorted []float64) int {
	if len(sorted) == 0 {
		return 0
	}
	count := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			count++
		}
	}
	return count
}
