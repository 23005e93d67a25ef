package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
)

// #region eval-harness
// EvalHarness validates a city state before it is persisted.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks st against the harness bounds.
func (h *EvalHarness) Run(st state.CityWeightState) EvalResult {
	return Check(st, h.config)
}

// Check verifies weight bounds, weight count and counters.
func Check(st state.CityWeightState, config EvalConfig) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Weight count
	countPass := len(st.ActionWeights) == config.ActionCount
	metrics = append(metrics, EvalMetric{
		Name:  "action_count",
		Value: float64(len(st.ActionWeights)),
		Pass:  countPass,
	})
	if !countPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d weights, expected %d", len(st.ActionWeights), config.ActionCount))
	}

	// 2. Each weight within [MinWeight, MaxWeight]
	for i, w := range st.ActionWeights {
		wPass := !math.IsNaN(w) && w >= config.MinWeight && w <= config.MaxWeight
		metrics = append(metrics, EvalMetric{
			Name:  fmt.Sprintf("weight_%d", i),
			Value: w,
			Pass:  wPass,
		})
		if !wPass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("weight %d = %.4f outside [%.2f, %.2f]", i, w, config.MinWeight, config.MaxWeight))
		}
	}

	// 3. Counters
	countsPass := st.ApproveCount >= 0 && st.RejectCount >= 0
	metrics = append(metrics, EvalMetric{
		Name:  "total_cases",
		Value: float64(st.Total()),
		Pass:  countsPass,
	})
	if !countsPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("negative counts approve=%d reject=%d", st.ApproveCount, st.RejectCount))
	}

	reason := "all checks passed"
	if !passed {
		reason = strings.Join(failReasons, "; ")
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
