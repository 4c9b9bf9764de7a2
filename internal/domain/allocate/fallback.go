package allocate

import "sort"

// Fallback produces the safe equal-weight vector over the top-scored symbols
// when nothing is eligible. Ties break by symbol ascending for determinism,
// volatility is ignored entirely, and each of the min(k, |scored|) selected
// symbols receives an equal share. This path is the liveness guarantee: any
// non-empty score set yields a non-empty weight vector.
func Fallback(scores map[string]float64, k int) (Allocation, error) {
	if len(scores) == 0 {
		return Allocation{}, ErrNoScores
	}

	symbols := make([]string, 0, len(scores))
	for symbol := range scores {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if scores[symbols[i]] != scores[symbols[j]] {
			return scores[symbols[i]] > scores[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})

	if k > len(symbols) {
		k = len(symbols)
	}
	selected := symbols[:k]

	weights := make(Weights, k)
	share := 1.0 / float64(k)
	for _, symbol := range selected {
		weights[symbol] = share
	}

	return Allocation{
		Method:  MethodFallbackEqual,
		Weights: weights,
	}, nil
}

// Cash is the emergency-brake vector: every known symbol at weight zero so
// downstream execution flattens the whole book.
func Cash(universe []string) Allocation {
	weights := make(Weights, len(universe))
	for _, symbol := range universe {
		weights[symbol] = 0
	}
	return Allocation{
		Method:  MethodBrakeCash,
		Weights: weights,
	}
}
