package confidence

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
)

// #region adjuster
// Adjuster scales base confidence scores by a city's approval history.
type Adjuster struct {
	policy Policy
}

// NewAdjuster creates an adjuster with the given policy.
func NewAdjuster(policy Policy) *Adjuster {
	return &Adjuster{policy: policy}
}

// Policy returns the bucket table in use.
func (a *Adjuster) Policy() Policy {
	return a.policy
}

// Evaluate adjusts base using st. seen is false when the city has no state yet,
// in which case the multiplier is exactly 1.0.
func (a *Adjuster) Evaluate(base float64, city string, st state.CityWeightState, seen bool) (Decision, error) {
	if math.IsNaN(base) || base < 0 || base > 1 {
		return Decision{}, &feedback.ValidationError{
			Field:   "base_confidence",
			Message: fmt.Sprintf("%v outside [0, 1]", base),
		}
	}

	if !seen || st.Total() == 0 {
		return Decision{
			Base:        base,
			Adjusted:    base,
			Multiplier:  1.0,
			Explanation: fmt.Sprintf("No feedback history for %s yet: standard confidence at 0%% approval rate over 0 cases (multiplier 1.00)", city),
		}, nil
	}

	rate := st.ApprovalRate()
	m := a.policy.Multiplier(rate)
	return Decision{
		Base:         base,
		Adjusted:     clamp01(base * m),
		Multiplier:   m,
		ApprovalRate: rate,
		Cases:        st.Total(),
		Seen:         true,
		Explanation:  explain(city, rate, m, st.Total()),
	}, nil
}

// #endregion adjuster

// #region explanation
func explain(city string, rate, m float64, cases int) string {
	pct := rate * 100
	switch {
	case m > 1:
		return fmt.Sprintf("Confidence boosted by %.0f%% based on %.0f%% approval rate in %s over %d cases (multiplier %.2f)",
			(m-1)*100, pct, city, cases, m)
	case m < 1:
		return fmt.Sprintf("Confidence reduced by %.0f%% due to %.0f%% approval rate in %s over %d cases (multiplier %.2f)",
			(1-m)*100, pct, city, cases, m)
	default:
		return fmt.Sprintf("Standard confidence based on %.0f%% approval rate in %s over %d cases (multiplier %.2f)",
			pct, city, cases, m)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion explanation
