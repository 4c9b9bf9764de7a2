package regime

// State is the persistence-filtered regime plus the floor it implies.
// Label is the effective (smoothed) value used by downstream logic;
// RawLabel is the instantaneous classifier output before smoothing.
type State struct {
	Label            Label   `json:"label"`
	RawLabel         Label   `json:"raw_label"`
	ConsecutiveCount int     `json:"consecutive_count"`
	ScoreFloor       float64 `json:"score_floor"`
}

// Filter smooths the raw regime signal with a consecutive-observation
// hysteresis gate. A classifier sitting near its flip threshold oscillates
// week to week; requiring two consecutive BEAR readings before the effective
// label flips keeps single-week noise out of allocation decisions while still
// reacting within one extra week to a genuine regime change.
type Filter struct {
	bullFloor float64
	bearFloor float64
}

// NewFilter creates a persistence filter with regime-dependent score floors
func NewFilter(bullFloor, bearFloor float64) *Filter {
	return &Filter{bullFloor: bullFloor, bearFloor: bearFloor}
}

// Update folds one raw observation into the previous state. The effective
// label is BEAR only when both this tick's and the previous tick's raw labels
// are BEAR; a lone BEAR reading keeps the prior effective label. A zero-value
// prev (no persisted history, ConsecutiveCount == 0) counts as no BEAR
// confirmation, so the first observation can never flip to BEAR.
func (f *Filter) Update(prev State, raw Label) State {
	count := 1
	if prev.ConsecutiveCount > 0 && raw == prev.RawLabel {
		count = prev.ConsecutiveCount + 1
	}

	effective := Bull
	if raw == Bear && prev.ConsecutiveCount > 0 && prev.RawLabel == Bear {
		effective = Bear
	}

	return State{
		Label:            effective,
		RawLabel:         raw,
		ConsecutiveCount: count,
		ScoreFloor:       f.FloorFor(effective),
	}
}

// FloorFor returns the eligibility score floor for an effective label
func (f *Filter) FloorFor(label Label) float64 {
	if label == Bear {
		return f.bearFloor
	}
	return f.bullFloor
}
