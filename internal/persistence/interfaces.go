// Package persistence defines the durable state contracts consumed by the
// tick engine and downstream execution.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sawpanic/alphatilt/internal/domain/regime"
)

// ErrNotFound indicates no state has been persisted yet
var ErrNotFound = errors.New("persistence: state not found")

// PortfolioTargetState is the single persisted artifact read by execution.
// It is replaced as one atomic unit at the end of a successful rebalance or
// brake tick and otherwise left untouched; a failed tick must never partially
// overwrite it.
type PortfolioTargetState struct {
	AsOf        time.Time          `json:"as_of"`
	Weights     map[string]float64 `json:"weights"`
	Regime      regime.State       `json:"regime"`
	LockedUntil time.Time          `json:"locked_until"`
	Method      string             `json:"method"`
}

// RegimeStatus is the per-tick regime record providing persistence-filter
// continuity across ticks and operational visibility. Written every tick,
// including monitor-only ticks that leave the portfolio untouched.
type RegimeStatus struct {
	AsOf  time.Time         `json:"as_of"`
	State regime.State      `json:"state"`
	Brake regime.BrakeEvent `json:"brake"`
}

// PortfolioStore persists the target-weight state
type PortfolioStore interface {
	// LoadPortfolio returns the current target state, or ErrNotFound
	LoadPortfolio(ctx context.Context) (*PortfolioTargetState, error)

	// SavePortfolio atomically replaces the target state
	SavePortfolio(ctx context.Context, state PortfolioTargetState) error
}

// RegimeStore persists regime continuity between ticks
type RegimeStore interface {
	// LoadRegime returns the last regime status, or ErrNotFound
	LoadRegime(ctx context.Context) (*RegimeStatus, error)

	// SaveRegime replaces the regime status
	SaveRegime(ctx context.Context, status RegimeStatus) error
}

// Store is the combined state-store contract
type Store interface {
	PortfolioStore
	RegimeStore
}
