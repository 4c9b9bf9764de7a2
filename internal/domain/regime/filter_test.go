package regime

import "testing"

func TestFilter_TwoConsecutiveBearsRequired(t *testing.T) {
	filter := NewFilter(0.50, 0.65)

	state := filter.Update(State{}, Bear)
	if state.Label != Bull {
		t.Errorf("first BEAR must not flip effective label, got %s", state.Label)
	}
	if state.ConsecutiveCount != 1 {
		t.Errorf("expected count 1, got %d", state.ConsecutiveCount)
	}

	state = filter.Update(state, Bear)
	if state.Label != Bear {
		t.Errorf("second consecutive BEAR must flip effective label, got %s", state.Label)
	}
	if state.ConsecutiveCount != 2 {
		t.Errorf("expected count 2, got %d", state.ConsecutiveCount)
	}
	if state.ScoreFloor != 0.65 {
		t.Errorf("expected BEAR floor 0.65, got %.2f", state.ScoreFloor)
	}
}

func TestFilter_LoneBearSandwichNeverFlips(t *testing.T) {
	filter := NewFilter(0.50, 0.65)

	state := filter.Update(State{}, Bull)
	state = filter.Update(state, Bear)
	if state.Label != Bull {
		t.Fatalf("lone BEAR flipped effective label to %s", state.Label)
	}
	if state.ConsecutiveCount != 1 {
		t.Errorf("expected count reset to 1, got %d", state.ConsecutiveCount)
	}

	state = filter.Update(state, Bull)
	if state.Label != Bull {
		t.Errorf("expected BULL after sandwich, got %s", state.Label)
	}
	if state.ScoreFloor != 0.50 {
		t.Errorf("expected BULL floor 0.50, got %.2f", state.ScoreFloor)
	}
}

func TestFilter_BullRecoversImmediately(t *testing.T) {
	filter := NewFilter(0.50, 0.65)

	state := filter.Update(State{}, Bear)
	state = filter.Update(state, Bear)
	if state.Label != Bear {
		t.Fatalf("setup failed, expected confirmed BEAR")
	}

	// One BULL reading flips back without confirmation
	state = filter.Update(state, Bull)
	if state.Label != Bull {
		t.Errorf("expected immediate BULL recovery, got %s", state.Label)
	}
	if state.ConsecutiveCount != 1 {
		t.Errorf("expected count reset to 1, got %d", state.ConsecutiveCount)
	}
}

func TestFilter_CountAccumulates(t *testing.T) {
	filter := NewFilter(0.50, 0.65)

	state := filter.Update(State{}, Bull)
	for i := 2; i <= 5; i++ {
		state = filter.Update(state, Bull)
		if state.ConsecutiveCount != i {
			t.Errorf("expected count %d, got %d", i, state.ConsecutiveCount)
		}
	}
}
