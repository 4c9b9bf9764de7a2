package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/alphatilt/internal/domain/regime"
	"github.com/sawpanic/alphatilt/internal/persistence"
)

func TestStore_PortfolioRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	state := persistence.PortfolioTargetState{
		AsOf:    time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		Weights: map[string]float64{"AAA": 0.6, "BBB": 0.4},
		Regime: regime.State{
			Label:            regime.Bull,
			RawLabel:         regime.Bull,
			ConsecutiveCount: 3,
			ScoreFloor:       0.50,
		},
		LockedUntil: time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC),
		Method:      "vol_adjusted_alpha_tilt",
	}
	require.NoError(t, store.SavePortfolio(ctx, state))

	loaded, err := store.LoadPortfolio(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.AsOf.Equal(state.AsOf))
	assert.Equal(t, state.Weights, loaded.Weights)
	assert.Equal(t, state.Regime, loaded.Regime)
	assert.True(t, loaded.LockedUntil.Equal(state.LockedUntil))
	assert.Equal(t, state.Method, loaded.Method)
}

func TestStore_RegimeRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	status := persistence.RegimeStatus{
		AsOf: time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC),
		State: regime.State{
			Label:            regime.Bear,
			RawLabel:         regime.Bear,
			ConsecutiveCount: 2,
			ScoreFloor:       0.65,
		},
		Brake: regime.BrakeEvent{
			Triggered: true,
			Reason:    regime.BrakeVIX,
			Date:      time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, store.SaveRegime(ctx, status))

	loaded, err := store.LoadRegime(ctx)
	require.NoError(t, err)
	assert.Equal(t, regime.Bear, loaded.State.Label)
	assert.Equal(t, 2, loaded.State.ConsecutiveCount)
	assert.True(t, loaded.Brake.Triggered)
	assert.Equal(t, regime.BrakeVIX, loaded.Brake.Reason)
}

func TestStore_LoadBeforeSave(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.LoadPortfolio(ctx)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = store.LoadRegime(ctx)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_SaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	first := persistence.PortfolioTargetState{
		AsOf:    time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		Weights: map[string]float64{"AAA": 1.0},
	}
	require.NoError(t, store.SavePortfolio(ctx, first))

	second := first
	second.AsOf = time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC)
	second.Weights = map[string]float64{"BBB": 1.0}
	require.NoError(t, store.SavePortfolio(ctx, second))

	loaded, err := store.LoadPortfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Weights, loaded.Weights)

	// replacement leaves no temp files behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "portfolio_target.json", entries[0].Name())
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "regime_status.json"), []byte("{not json"), 0644))

	_, err = store.LoadRegime(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, persistence.ErrNotFound)
}
