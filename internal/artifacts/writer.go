// Package artifacts writes the audit trail of each rebalance: the full
// allocation audit, the minimal target-weights file read by execution, and a
// CSV weights export. Files are timestamped and written atomically.
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/alphatilt/internal/domain/regime"
)

// Params captures the configuration an allocation was produced under
type Params struct {
	TopQuantile float64 `json:"top_quantile"`
	ScoreFloor  float64 `json:"score_floor"`
	MaxWeight   float64 `json:"max_weight"`
	VolWindow   int     `json:"vol_window"`
}

// SymbolDetail is the per-symbol audit metadata
type SymbolDetail struct {
	Score     float64 `json:"score"`
	Vol       float64 `json:"vol,omitempty"`
	RawWeight float64 `json:"raw_weight,omitempty"` // normalized weight before capping
	Excluded  string  `json:"excluded,omitempty"`   // exclusion reason, empty if allocated
}

// AllocationAudit is the full audit artifact for one tick
type AllocationAudit struct {
	ID         string                  `json:"id"`
	AsOf       time.Time               `json:"as_of"`
	Outcome    string                  `json:"outcome"`
	Method     string                  `json:"method"`
	Params     Params                  `json:"params"`
	Weights    map[string]float64      `json:"weights"`
	Symbols    map[string]SymbolDetail `json:"symbols"`
	Regime     regime.State            `json:"regime"`
	Brake      regime.BrakeEvent       `json:"brake"`
	Iterations int                     `json:"iterations"`
	AllCapped  bool                    `json:"all_capped"`
}

// TargetWeights is the minimal artifact consumed directly by execution
type TargetWeights struct {
	AsOf    time.Time          `json:"as_of"`
	Weights map[string]float64 `json:"weights"`
}

// Writer emits artifacts into one output directory
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// NewAuditID returns a fresh audit identifier
func NewAuditID() string {
	return uuid.NewString()
}

// WriteAudit writes the full allocation audit, returning the file path
func (w *Writer) WriteAudit(audit AllocationAudit) (string, error) {
	name := fmt.Sprintf("%s-audit.json", audit.AsOf.UTC().Format("20060102-150405"))
	return w.writeJSON(name, audit)
}

// WriteTargets writes the minimal target-weights artifact
func (w *Writer) WriteTargets(targets TargetWeights) (string, error) {
	name := fmt.Sprintf("%s-targets.json", targets.AsOf.UTC().Format("20060102-150405"))
	return w.writeJSON(name, targets)
}

// WriteWeightsCSV writes a symbol,weight export sorted by symbol
func (w *Writer) WriteWeightsCSV(targets TargetWeights) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("ensure artifacts dir: %w", err)
	}

	name := fmt.Sprintf("%s-weights.csv", targets.AsOf.UTC().Format("20060102-150405"))
	path := filepath.Join(w.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	symbols := make([]string, 0, len(targets.Weights))
	for symbol := range targets.Weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	cw := csv.NewWriter(file)
	if err := cw.Write([]string{"symbol", "weight"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, symbol := range symbols {
		row := []string{symbol, strconv.FormatFloat(targets.Weights[symbol], 'f', -1, 64)}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	return path, nil
}

func (w *Writer) writeJSON(name string, v interface{}) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("ensure artifacts dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("replace %s: %w", name, err)
	}

	return path, nil
}
