// Package volatility computes rolling-window return volatility per symbol.
package volatility

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

var (
	// ErrInsufficientData indicates fewer trailing returns than the window requires
	ErrInsufficientData = errors.New("volatility: insufficient price history for window")

	// ErrInvalidVolatility indicates a zero or non-finite volatility result
	ErrInvalidVolatility = errors.New("volatility: zero or invalid volatility")
)

// PricePoint is a single close observation. Dates must be strictly increasing
// within a series; gaps are tolerated (returns span consecutive observations).
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Estimate is the rolling volatility measurement for one symbol
type Estimate struct {
	Symbol     string  `json:"symbol"`
	Vol        float64 `json:"vol"`
	SampleSize int     `json:"sample_size"`
}

// Estimator computes sample standard deviation of trailing-window simple returns
type Estimator struct {
	window int
}

// NewEstimator creates an estimator over the given trailing-return window
func NewEstimator(window int) *Estimator {
	return &Estimator{window: window}
}

// Window returns the configured trailing-return window
func (e *Estimator) Window() int {
	return e.window
}

// Estimate computes the trailing-window return volatility for one price series.
// Pure function of its inputs: no side effects, no shared state.
func (e *Estimator) Estimate(symbol string, prices []PricePoint) (Estimate, error) {
	returns := Returns(prices)
	if len(returns) < e.window {
		return Estimate{}, ErrInsufficientData
	}

	trailing := returns[len(returns)-e.window:]
	vol := sampleStdDev(trailing)
	if vol == 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
		return Estimate{}, ErrInvalidVolatility
	}

	return Estimate{
		Symbol:     symbol,
		Vol:        vol,
		SampleSize: len(trailing),
	}, nil
}

// EstimateUniverse computes volatility for every symbol concurrently. Each
// symbol's computation reads only its own series, so there is no shared
// mutable state beyond the result maps. Per-symbol failures are returned
// alongside the successes; they never abort the batch.
func (e *Estimator) EstimateUniverse(prices map[string][]PricePoint) (map[string]Estimate, map[string]error) {
	estimates := make(map[string]Estimate, len(prices))
	failures := make(map[string]error)

	var mu sync.Mutex
	var wg sync.WaitGroup

	symbols := make([]string, 0, len(prices))
	for symbol := range prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string, series []PricePoint) {
			defer wg.Done()

			est, err := e.Estimate(symbol, series)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[symbol] = err
				return
			}
			estimates[symbol] = est
		}(symbol, prices[symbol])
	}

	wg.Wait()
	return estimates, failures
}

// Returns computes simple percentage returns between consecutive closes.
// The first (undefined) return is dropped. Closes that are zero or non-finite
// produce a NaN return, which surfaces as ErrInvalidVolatility downstream.
func Returns(prices []PricePoint) []float64 {
	if len(prices) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1].Close
		if prev == 0 {
			returns = append(returns, math.NaN())
			continue
		}
		returns = append(returns, (prices[i].Close-prev)/prev)
	}
	return returns
}

// sampleStdDev is the n-1 denominator standard deviation
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1))
}
