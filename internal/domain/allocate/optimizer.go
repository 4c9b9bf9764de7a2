// Package allocate turns eligible scores and volatilities into a bounded,
// capped weight vector, with an equal-weight fallback and a cash override.
package allocate

import (
	"errors"
	"sort"
)

// Method identifiers recorded in the audit artifact
const (
	MethodVolAdjustedTilt = "vol_adjusted_alpha_tilt"
	MethodFallbackEqual   = "fallback_equal_weight"
	MethodBrakeCash       = "brake_cash"
)

// capEpsilon absorbs float drift when comparing weights against the cap
const capEpsilon = 1e-12

var (
	// ErrNoEligible indicates the optimizer was handed an empty eligible set
	ErrNoEligible = errors.New("allocate: empty eligible set")

	// ErrNoScores indicates the fallback was handed an empty score set
	ErrNoScores = errors.New("allocate: no scored symbols for fallback")
)

// Weights maps symbol to target portfolio weight in [0,1]
type Weights map[string]float64

// Sum returns the total allocated weight
func (w Weights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// Allocation is one produced weight vector with its provenance
type Allocation struct {
	Method     string  `json:"method"`
	Weights    Weights `json:"weights"`
	RawWeights Weights `json:"raw_weights"` // normalized weights before capping
	Iterations int     `json:"iterations"`
	AllCapped  bool    `json:"all_capped"`
}

// Optimize computes score/volatility weights for the eligible set, normalizes
// to sum 1, then iteratively caps and redistributes. Redistribution is
// proportional to current uncapped weights, and a member that newly exceeds
// the cap is caught on the next pass. The loop is bounded by |eligible|
// iterations: each pass caps at least one previously-uncapped symbol.
//
// When every symbol ends at the cap the vector is left as-is even though its
// total exceeds 1 — the documented degenerate case, not an error. Callers
// that require sum <= 1 must renormalize explicitly.
//
// Volatilities must be nonzero for every eligible symbol; the eligibility
// gate guarantees that by construction.
func Optimize(eligible []string, scores, vols map[string]float64, maxWeight float64) (Allocation, error) {
	if len(eligible) == 0 {
		return Allocation{}, ErrNoEligible
	}

	symbols := append([]string(nil), eligible...)
	sort.Strings(symbols)

	// Raw score/vol tilt, then normalize to sum exactly 1.
	weights := make(Weights, len(symbols))
	var rawSum float64
	for _, s := range symbols {
		weights[s] = scores[s] / vols[s]
		rawSum += weights[s]
	}
	for _, s := range symbols {
		weights[s] /= rawSum
	}

	raw := make(Weights, len(weights))
	for s, w := range weights {
		raw[s] = w
	}

	capped := make(map[string]bool, len(symbols))
	iterations := 0

	for range symbols {
		newly := make([]string, 0, len(symbols))
		for _, s := range symbols {
			if !capped[s] && weights[s] > maxWeight+capEpsilon {
				newly = append(newly, s)
			}
		}
		if len(newly) == 0 {
			break
		}
		iterations++

		var excess float64
		for _, s := range newly {
			excess += weights[s] - maxWeight
			weights[s] = maxWeight
			capped[s] = true
		}

		var uncappedSum float64
		for _, s := range symbols {
			if !capped[s] {
				uncappedSum += weights[s]
			}
		}
		if uncappedSum == 0 {
			// Every symbol is at the cap; nothing left to absorb the excess.
			break
		}

		for _, s := range symbols {
			if !capped[s] {
				weights[s] += excess * weights[s] / uncappedSum
			}
		}
	}

	return Allocation{
		Method:     MethodVolAdjustedTilt,
		Weights:    weights,
		RawWeights: raw,
		Iterations: iterations,
		AllCapped:  len(capped) == len(symbols),
	}, nil
}
