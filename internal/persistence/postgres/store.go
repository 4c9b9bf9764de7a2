// Package postgres implements the state store on PostgreSQL. Target state and
// regime status live in single-row tables replaced transactionally, and every
// database call runs behind a circuit breaker so a failing database trips
// fast instead of hanging the tick.
//
// Schema:
//
//	CREATE TABLE portfolio_target (
//	    id           SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
//	    as_of        TIMESTAMPTZ NOT NULL,
//	    weights      JSONB NOT NULL,
//	    regime       JSONB NOT NULL,
//	    locked_until TIMESTAMPTZ NOT NULL,
//	    method       TEXT NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE regime_status (
//	    id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
//	    as_of      TIMESTAMPTZ NOT NULL,
//	    state      JSONB NOT NULL,
//	    brake      JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/alphatilt/internal/persistence"
)

// Store implements persistence.Store on PostgreSQL
type Store struct {
	db      *sqlx.DB
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// Open connects to PostgreSQL and prepares the store
func Open(dsn string, timeout time.Duration) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStore(db, timeout), nil
}

// NewStore wraps an existing connection pool
func NewStore(db *sqlx.DB, timeout time.Duration) *Store {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "state-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Store{db: db, breaker: breaker, timeout: timeout}
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

type portfolioRow struct {
	AsOf        time.Time `db:"as_of"`
	Weights     []byte    `db:"weights"`
	Regime      []byte    `db:"regime"`
	LockedUntil time.Time `db:"locked_until"`
	Method      string    `db:"method"`
}

type regimeRow struct {
	AsOf  time.Time `db:"as_of"`
	State []byte    `db:"state"`
	Brake []byte    `db:"brake"`
}

// LoadPortfolio returns the persisted target state, or persistence.ErrNotFound
func (s *Store) LoadPortfolio(ctx context.Context) (*persistence.PortfolioTargetState, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var row portfolioRow
		err := s.db.GetContext(ctx, &row,
			`SELECT as_of, weights, regime, locked_until, method FROM portfolio_target WHERE id = 1`)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load portfolio target: %w", err)
		}

		state := persistence.PortfolioTargetState{
			AsOf:        row.AsOf,
			LockedUntil: row.LockedUntil,
			Method:      row.Method,
		}
		if err := json.Unmarshal(row.Weights, &state.Weights); err != nil {
			return nil, fmt.Errorf("parse weights: %w", err)
		}
		if err := json.Unmarshal(row.Regime, &state.Regime); err != nil {
			return nil, fmt.Errorf("parse regime: %w", err)
		}
		return &state, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*persistence.PortfolioTargetState), nil
}

// SavePortfolio replaces the target state as a single upsert
func (s *Store) SavePortfolio(ctx context.Context, state persistence.PortfolioTargetState) error {
	weightsJSON, err := json.Marshal(state.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	regimeJSON, err := json.Marshal(state.Regime)
	if err != nil {
		return fmt.Errorf("marshal regime: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO portfolio_target (id, as_of, weights, regime, locked_until, method, updated_at)
			VALUES (1, $1, $2, $3, $4, $5, now())
			ON CONFLICT (id) DO UPDATE SET
				as_of = EXCLUDED.as_of,
				weights = EXCLUDED.weights,
				regime = EXCLUDED.regime,
				locked_until = EXCLUDED.locked_until,
				method = EXCLUDED.method,
				updated_at = now()`,
			state.AsOf, weightsJSON, regimeJSON, state.LockedUntil, state.Method)
		if err != nil {
			return nil, fmt.Errorf("save portfolio target: %w", err)
		}
		return nil, nil
	})
	return err
}

// LoadRegime returns the persisted regime status, or persistence.ErrNotFound
func (s *Store) LoadRegime(ctx context.Context) (*persistence.RegimeStatus, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var row regimeRow
		err := s.db.GetContext(ctx, &row,
			`SELECT as_of, state, brake FROM regime_status WHERE id = 1`)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load regime status: %w", err)
		}

		status := persistence.RegimeStatus{AsOf: row.AsOf}
		if err := json.Unmarshal(row.State, &status.State); err != nil {
			return nil, fmt.Errorf("parse regime state: %w", err)
		}
		if err := json.Unmarshal(row.Brake, &status.Brake); err != nil {
			return nil, fmt.Errorf("parse brake event: %w", err)
		}
		return &status, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*persistence.RegimeStatus), nil
}

// SaveRegime replaces the regime status
func (s *Store) SaveRegime(ctx context.Context, status persistence.RegimeStatus) error {
	stateJSON, err := json.Marshal(status.State)
	if err != nil {
		return fmt.Errorf("marshal regime state: %w", err)
	}
	brakeJSON, err := json.Marshal(status.Brake)
	if err != nil {
		return fmt.Errorf("marshal brake event: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO regime_status (id, as_of, state, brake, updated_at)
			VALUES (1, $1, $2, $3, now())
			ON CONFLICT (id) DO UPDATE SET
				as_of = EXCLUDED.as_of,
				state = EXCLUDED.state,
				brake = EXCLUDED.brake,
				updated_at = now()`,
			status.AsOf, stateJSON, brakeJSON)
		if err != nil {
			return nil, fmt.Errorf("save regime status: %w", err)
		}
		return nil, nil
	})
	return err
}

var _ persistence.Store = (*Store)(nil)
