package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/alphatilt/internal/domain/regime"
)

func TestWriteAudit_RoundTrip(t *testing.T) {
	w := NewWriter(t.TempDir())

	audit := AllocationAudit{
		ID:      NewAuditID(),
		AsOf:    time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		Outcome: "OPTIMIZED",
		Method:  "vol_adjusted_alpha_tilt",
		Params:  Params{TopQuantile: 0.75, ScoreFloor: 0.50, MaxWeight: 0.25, VolWindow: 30},
		Weights: map[string]float64{"AAA": 0.25},
		Symbols: map[string]SymbolDetail{
			"AAA": {Score: 0.9, Vol: 0.02, RawWeight: 1.0},
			"BBB": {Score: 0.8, Excluded: "score_below_threshold"},
		},
		Regime:     regime.State{Label: regime.Bull, ScoreFloor: 0.50},
		Iterations: 1,
		AllCapped:  true,
	}

	path, err := w.WriteAudit(audit)
	require.NoError(t, err)
	assert.Contains(t, path, "20250106-000000-audit.json")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded AllocationAudit
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, audit.ID, loaded.ID)
	assert.Equal(t, audit.Weights, loaded.Weights)
	assert.Equal(t, "score_below_threshold", loaded.Symbols["BBB"].Excluded)
	assert.True(t, loaded.AllCapped)
}

func TestWriteWeightsCSV_SortedBySymbol(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.WriteWeightsCSV(TargetWeights{
		AsOf:    time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		Weights: map[string]float64{"ZZZ": 0.4, "AAA": 0.6},
	})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"symbol", "weight"}, rows[0])
	assert.Equal(t, []string{"AAA", "0.6"}, rows[1])
	assert.Equal(t, []string{"ZZZ", "0.4"}, rows[2])
}

func TestNewAuditID_Unique(t *testing.T) {
	assert.NotEqual(t, NewAuditID(), NewAuditID())
}
