package update

import (
	"fmt"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
)

// #region apply-function
// Apply is a pure function that folds one feedback event into a city's state.
// The caller owns persistence; old is never mutated.
func Apply(old state.CityWeightState, ev feedback.Event, config Config) Result {
	next := old.Clone()
	for len(next.ActionWeights) < config.ActionCount {
		next.ActionWeights = append(next.ActionWeights, 1.0)
	}
	// A lowered action count drops the trailing weights.
	next.ActionWeights = next.ActionWeights[:config.ActionCount]

	change := Change{Action: ev.Action}
	decision := Decision{Action: "count_only", Reason: "action unknown, weights unchanged"}

	if ev.Action != nil {
		i := *ev.Action
		if i >= 0 && i < len(next.ActionWeights) {
			factor := config.RejectFactor
			if ev.Polarity == feedback.Approve {
				factor = config.ApproveFactor
			}
			change.Applied = true
			change.OldWeight = next.ActionWeights[i]
			change.NewWeight = clamp(change.OldWeight*factor, config.MinWeight, config.MaxWeight)
			next.ActionWeights[i] = change.NewWeight
			decision = Decision{
				Action: "adjust",
				Reason: fmt.Sprintf("%s action %d: %.6f -> %.6f", ev.Polarity, i, change.OldWeight, change.NewWeight),
			}
		} else {
			decision.Reason = fmt.Sprintf("action %d outside %d weights, weights unchanged", i, len(next.ActionWeights))
		}
	}

	if ev.Polarity == feedback.Approve {
		next.ApproveCount++
	} else {
		next.RejectCount++
	}
	if !ev.Timestamp.IsZero() {
		next.UpdatedAt = ev.Timestamp.UTC()
	}

	return Result{NewState: next, Decision: decision, Change: change}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
// #endregion apply-function
