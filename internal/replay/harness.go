package replay

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/eval"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/update"
)

// #region types
// ReplayConfig bundles update and eval configs for a replay run.
type ReplayConfig struct {
	UpdateConfig update.Config
	EvalConfig   eval.EvalConfig
}

// DefaultReplayConfig returns the defaults for both stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		UpdateConfig: update.DefaultConfig(),
		EvalConfig:   eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of replaying one ledger event.
type ReplayResult struct {
	EventID string
	City    string
	Action  string // "adjust" | "count_only" | "eval_reject" | "invalid"
	Reason  string
	Change  update.Change

	// Eval stage (nil if the event was invalid)
	EvalResult *eval.EvalResult
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalEvents int
	Adjusted    int
	CountOnly   int
	EvalRejects int
	Invalid     int
	Cities      int
}

// #endregion types

// #region replay
// Replay folds events in order into fresh per-city states: update → eval →
// advance. It never touches storage.
func Replay(events []feedback.Event, config ReplayConfig) ([]ReplayResult, map[string]state.CityWeightState) {
	states := make(map[string]state.CityWeightState)
	results := make([]ReplayResult, 0, len(events))
	evalInst := eval.NewEvalHarness(config.EvalConfig)

	for _, ev := range events {
		// 1. Validate
		if err := ev.Validate(); err != nil {
			results = append(results, ReplayResult{
				EventID: ev.ID,
				City:    ev.City,
				Action:  "invalid",
				Reason:  err.Error(),
			})
			continue
		}
		city, _ := feedback.NormalizeCity(ev.City)
		ev.City = city

		current, ok := states[city]
		if !ok {
			current = state.NewCityWeightState(city, config.UpdateConfig.ActionCount)
		}

		// 2. Update
		updateResult := update.Apply(current, ev, config.UpdateConfig)

		// 3. Eval
		evalResult := evalInst.Run(updateResult.NewState)
		if !evalResult.Passed {
			results = append(results, ReplayResult{
				EventID:    ev.ID,
				City:       city,
				Action:     "eval_reject",
				Reason:     evalResult.Reason,
				Change:     updateResult.Change,
				EvalResult: &evalResult,
			})
			continue
		}

		// 4. Advance
		states[city] = updateResult.NewState
		results = append(results, ReplayResult{
			EventID:    ev.ID,
			City:       city,
			Action:     updateResult.Decision.Action,
			Reason:     updateResult.Decision.Reason,
			Change:     updateResult.Change,
			EvalResult: &evalResult,
		})
	}

	return results, states
}

// Rebuild re-derives every city's state from the ledger.
func Rebuild(events []feedback.Event, config ReplayConfig) map[string]state.CityWeightState {
	_, states := Replay(events, config)
	return states
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalEvents: len(results)}
	cities := make(map[string]struct{})
	for _, r := range results {
		switch r.Action {
		case "adjust":
			s.Adjusted++
		case "count_only":
			s.CountOnly++
		case "eval_reject":
			s.EvalRejects++
		case "invalid":
			s.Invalid++
			continue
		}
		cities[r.City] = struct{}{}
	}
	s.Cities = len(cities)
	return s
}

// #endregion replay

// #region reconcile
// Drift is one field where stored state disagrees with the ledger.
type Drift struct {
	City    string
	Field   string
	Stored  string
	Rebuilt string
}

// Reconciliation compares persisted weight states with a rebuild.
type Reconciliation struct {
	Matched  []string // cities identical in both
	Drifts   []Drift
	Missing  []string // in the ledger, no stored state
	Orphaned []string // stored state with no ledger events
}

// Clean reports whether stored state matches the ledger exactly.
func (r Reconciliation) Clean() bool {
	return len(r.Drifts) == 0 && len(r.Missing) == 0 && len(r.Orphaned) == 0
}

// Reconcile diffs stored against rebuilt. Weights must match bit for bit.
// It reports only; repairing is left to the operator.
func Reconcile(stored []state.CityWeightState, rebuilt map[string]state.CityWeightState) Reconciliation {
	var r Reconciliation
	seen := make(map[string]bool, len(stored))

	for _, st := range stored {
		seen[st.City] = true
		want, ok := rebuilt[st.City]
		if !ok {
			r.Orphaned = append(r.Orphaned, st.City)
			continue
		}
		drifts := diff(st, want)
		if len(drifts) == 0 {
			r.Matched = append(r.Matched, st.City)
		}
		r.Drifts = append(r.Drifts, drifts...)
	}
	for city := range rebuilt {
		if !seen[city] {
			r.Missing = append(r.Missing, city)
		}
	}

	sort.Strings(r.Matched)
	sort.Strings(r.Missing)
	sort.Strings(r.Orphaned)
	return r
}

func diff(stored, rebuilt state.CityWeightState) []Drift {
	var out []Drift
	add := func(field string, s, b interface{}) {
		out = append(out, Drift{City: stored.City, Field: field, Stored: fmt.Sprint(s), Rebuilt: fmt.Sprint(b)})
	}
	if stored.ApproveCount != rebuilt.ApproveCount {
		add("approve_count", stored.ApproveCount, rebuilt.ApproveCount)
	}
	if stored.RejectCount != rebuilt.RejectCount {
		add("reject_count", stored.RejectCount, rebuilt.RejectCount)
	}
	if len(stored.ActionWeights) != len(rebuilt.ActionWeights) {
		add("action_weights", stored.ActionWeights, rebuilt.ActionWeights)
		return out
	}
	for i := range stored.ActionWeights {
		if stored.ActionWeights[i] != rebuilt.ActionWeights[i] {
			add(fmt.Sprintf("action_weights[%d]", i), stored.ActionWeights[i], rebuilt.ActionWeights[i])
		}
	}
	return out
}

// #endregion reconcile
