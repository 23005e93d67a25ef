package update

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
)

func event(p feedback.Polarity, action *int) feedback.Event {
	return feedback.Event{CaseID: "c", City: "mumbai", Polarity: p, Action: action}
}

func TestApplyApprove(t *testing.T) {
	old := state.NewCityWeightState("mumbai", 3)

	result := Apply(old, event(feedback.Approve, feedback.ActionIndex(1)), DefaultConfig())

	if result.Decision.Action != "adjust" {
		t.Fatalf("expected adjust, got %s", result.Decision.Action)
	}
	if result.NewState.ActionWeights[1] != 1.05 {
		t.Fatalf("expected 1.05, got %f", result.NewState.ActionWeights[1])
	}
	if result.NewState.ActionWeights[0] != 1.0 || result.NewState.ActionWeights[2] != 1.0 {
		t.Fatalf("other weights moved: %v", result.NewState.ActionWeights)
	}
	if result.NewState.ApproveCount != 1 || result.NewState.RejectCount != 0 {
		t.Fatalf("unexpected counts: %+v", result.NewState)
	}
	if !result.Change.Applied || result.Change.OldWeight != 1.0 || result.Change.NewWeight != 1.05 {
		t.Fatalf("unexpected change: %+v", result.Change)
	}
}

func TestApplyReject(t *testing.T) {
	old := state.NewCityWeightState("ahmedabad", 3)

	result := Apply(old, event(feedback.Reject, feedback.ActionIndex(1)), DefaultConfig())

	if result.NewState.ActionWeights[1] != 0.97 {
		t.Fatalf("expected 0.97, got %f", result.NewState.ActionWeights[1])
	}
	if result.NewState.RejectCount != 1 || result.NewState.ApprovalRate() != 0 {
		t.Fatalf("unexpected counts: %+v", result.NewState)
	}
	if math.Abs(result.Change.Delta()+0.03) > 1e-12 {
		t.Fatalf("expected delta -0.03, got %f", result.Change.Delta())
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	old := state.NewCityWeightState("pune", 3)

	Apply(old, event(feedback.Approve, feedback.ActionIndex(0)), DefaultConfig())

	if old.ActionWeights[0] != 1.0 || old.ApproveCount != 0 {
		t.Fatalf("input state was mutated: %+v", old)
	}
}

func TestApplyUnknownActionCountsOnly(t *testing.T) {
	old := state.NewCityWeightState("pune", 3)

	result := Apply(old, event(feedback.Approve, nil), DefaultConfig())

	if result.Decision.Action != "count_only" {
		t.Fatalf("expected count_only, got %s", result.Decision.Action)
	}
	for i, w := range result.NewState.ActionWeights {
		if w != 1.0 {
			t.Fatalf("weight %d moved to %f", i, w)
		}
	}
	if result.NewState.ApproveCount != 1 {
		t.Fatalf("expected approve count 1, got %d", result.NewState.ApproveCount)
	}
	if result.Change.Delta() != 0 {
		t.Fatalf("expected zero delta, got %f", result.Change.Delta())
	}
}

func TestApplyOutOfRangeAction(t *testing.T) {
	old := state.NewCityWeightState("pune", 3)

	result := Apply(old, event(feedback.Reject, feedback.ActionIndex(7)), DefaultConfig())

	if result.Change.Applied {
		t.Fatal("expected no weight change for out-of-range action")
	}
	if result.NewState.RejectCount != 1 {
		t.Fatalf("expected reject count 1, got %d", result.NewState.RejectCount)
	}
}

func TestApplyPadsShortState(t *testing.T) {
	old := state.CityWeightState{City: "pune", ActionWeights: []float64{1.2}}

	result := Apply(old, event(feedback.Approve, feedback.ActionIndex(2)), DefaultConfig())

	if len(result.NewState.ActionWeights) != 3 {
		t.Fatalf("expected 3 weights, got %d", len(result.NewState.ActionWeights))
	}
	if result.NewState.ActionWeights[0] != 1.2 || result.NewState.ActionWeights[2] != 1.05 {
		t.Fatalf("unexpected weights: %v", result.NewState.ActionWeights)
	}
}

func TestApplyTruncatesLongState(t *testing.T) {
	old := state.CityWeightState{City: "pune", ActionWeights: []float64{1.1, 0.9, 1.3}}
	cfg := DefaultConfig()
	cfg.ActionCount = 2

	result := Apply(old, event(feedback.Approve, feedback.ActionIndex(0)), cfg)

	if len(result.NewState.ActionWeights) != 2 {
		t.Fatalf("expected 2 weights, got %d", len(result.NewState.ActionWeights))
	}
	if math.Abs(result.NewState.ActionWeights[0]-1.1*1.05) > 1e-12 || result.NewState.ActionWeights[1] != 0.9 {
		t.Fatalf("unexpected weights: %v", result.NewState.ActionWeights)
	}
	if len(old.ActionWeights) != 3 {
		t.Fatalf("input mutated: %v", old.ActionWeights)
	}
}

func TestApplyClampsAfterManyEvents(t *testing.T) {
	cfg := DefaultConfig()
	up := state.NewCityWeightState("x", 3)
	down := state.NewCityWeightState("y", 3)

	for i := 0; i < 200; i++ {
		up = Apply(up, event(feedback.Approve, feedback.ActionIndex(0)), cfg).NewState
		down = Apply(down, event(feedback.Reject, feedback.ActionIndex(0)), cfg).NewState
		if up.ActionWeights[0] > cfg.MaxWeight || down.ActionWeights[0] < cfg.MinWeight {
			t.Fatalf("bounds violated at step %d: up=%f down=%f", i, up.ActionWeights[0], down.ActionWeights[0])
		}
	}

	if up.ActionWeights[0] != 2.0 {
		t.Fatalf("expected 2.0 after 200 approvals, got %f", up.ActionWeights[0])
	}
	if down.ActionWeights[0] != 0.1 {
		t.Fatalf("expected 0.1 after 200 rejections, got %f", down.ActionWeights[0])
	}
	if up.ApproveCount != 200 || down.RejectCount != 200 {
		t.Fatalf("unexpected counts: up=%d down=%d", up.ApproveCount, down.RejectCount)
	}
}

func TestApplyDeterministic(t *testing.T) {
	old := state.NewCityWeightState("x", 3)
	ev := event(feedback.Reject, feedback.ActionIndex(2))
	ev.Timestamp = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	r1 := Apply(old, ev, DefaultConfig())
	r2 := Apply(old, ev, DefaultConfig())

	for i := range r1.NewState.ActionWeights {
		if r1.NewState.ActionWeights[i] != r2.NewState.ActionWeights[i] {
			t.Fatalf("non-deterministic at index %d", i)
		}
	}
	if !r1.NewState.UpdatedAt.Equal(ev.Timestamp) {
		t.Fatalf("expected updated_at from event, got %v", r1.NewState.UpdatedAt)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []Config{
		{ActionCount: 0, ApproveFactor: 1.05, RejectFactor: 0.97, MinWeight: 0.1, MaxWeight: 2},
		{ActionCount: 3, ApproveFactor: 1.05, RejectFactor: 0.97, MinWeight: 0, MaxWeight: 2},
		{ActionCount: 3, ApproveFactor: 1.05, RejectFactor: 0.97, MinWeight: 1.5, MaxWeight: 2},
		{ActionCount: 3, ApproveFactor: 0, RejectFactor: 0.97, MinWeight: 0.1, MaxWeight: 2},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, c)
		}
	}
}

func TestConfigLabel(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Label(1) != "Medium FSI" {
		t.Fatalf("expected Medium FSI, got %s", cfg.Label(1))
	}
	if cfg.Label(5) != "Action 5" {
		t.Fatalf("expected fallback label, got %s", cfg.Label(5))
	}
}
