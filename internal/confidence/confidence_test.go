package confidence

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cityState(approve, reject int) state.CityWeightState {
	st := state.NewCityWeightState("x", 3)
	st.ApproveCount = approve
	st.RejectCount = reject
	return st
}

func TestPolicyMultiplierBoundaries(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		rate float64
		want float64
	}{
		{1.0, 1.10},
		{0.85, 1.10},
		{0.8499, 1.00},
		{0.70, 1.00},
		{0.6999, 0.90},
		{0.50, 0.90},
		{0.4999, 0.80},
		{0, 0.80},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, p.Multiplier(c.rate), "rate %v", c.rate)
	}
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	assert.Error(t, Policy{}.Validate())
	assert.Error(t, Policy{Buckets: []Bucket{{MinRate: 0.5, Multiplier: 1}}}.Validate(), "must cover rate 0")
	assert.Error(t, Policy{Buckets: []Bucket{{MinRate: 0.5, Multiplier: 1}, {MinRate: 0.7, Multiplier: 1}, {MinRate: 0, Multiplier: 1}}}.Validate(), "must descend")
	assert.Error(t, Policy{Buckets: []Bucket{{MinRate: 0, Multiplier: 0}}}.Validate(), "multiplier must be positive")
	assert.Error(t, Policy{Buckets: []Bucket{{MinRate: 1.5, Multiplier: 1}, {MinRate: 0, Multiplier: 1}}}.Validate(), "rate above 1")
}

func TestEvaluateHighApprovalCity(t *testing.T) {
	a := NewAdjuster(DefaultPolicy())

	d, err := a.Evaluate(0.80, "mumbai", cityState(17, 3), true)
	require.NoError(t, err)

	assert.InDelta(t, 0.88, d.Adjusted, 1e-9)
	assert.Equal(t, 1.10, d.Multiplier)
	assert.Equal(t, 20, d.Cases)
	assert.True(t, d.Seen)
	assert.Contains(t, d.Explanation, "85%")
	assert.Contains(t, d.Explanation, "20")
	assert.Contains(t, d.Explanation, "boosted by 10%")
}

func TestEvaluateLowApprovalCity(t *testing.T) {
	a := NewAdjuster(DefaultPolicy())

	d, err := a.Evaluate(0.60, "pune", cityState(1, 3), true)
	require.NoError(t, err)

	assert.InDelta(t, 0.48, d.Adjusted, 1e-9)
	assert.Contains(t, d.Explanation, "reduced by 20%")
	assert.Contains(t, d.Explanation, "25%")
}

func TestEvaluateStandardBucket(t *testing.T) {
	a := NewAdjuster(DefaultPolicy())

	d, err := a.Evaluate(0.5, "nashik", cityState(3, 1), true)
	require.NoError(t, err)

	assert.Equal(t, 0.5, d.Adjusted)
	assert.Contains(t, d.Explanation, "Standard confidence")
	assert.Contains(t, d.Explanation, "75%")
}

func TestEvaluateUnseenCityIsNeutral(t *testing.T) {
	a := NewAdjuster(DefaultPolicy())

	for _, base := range []float64{0, 0.3, 0.77, 1} {
		d, err := a.Evaluate(base, "jaipur", state.CityWeightState{}, false)
		require.NoError(t, err)
		assert.Equal(t, base, d.Adjusted)
		assert.Equal(t, 1.0, d.Multiplier)
		assert.False(t, d.Seen)
		assert.Contains(t, d.Explanation, "0%")
		assert.Contains(t, d.Explanation, "0 cases")
	}
}

func TestEvaluateClampsToOne(t *testing.T) {
	a := NewAdjuster(DefaultPolicy())

	d, err := a.Evaluate(0.99, "mumbai", cityState(10, 0), true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.Adjusted)
}

func TestEvaluateRejectsOutOfRangeBase(t *testing.T) {
	a := NewAdjuster(DefaultPolicy())

	for _, base := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := a.Evaluate(base, "mumbai", cityState(1, 0), true)
		require.Error(t, err)
		assert.True(t, feedback.IsValidation(err), "base %v", base)
	}
}

func TestEvaluateAlwaysWithinUnitInterval(t *testing.T) {
	a := NewAdjuster(Policy{Buckets: []Bucket{{MinRate: 0.5, Multiplier: 3}, {MinRate: 0, Multiplier: 0.01}}})

	for approve := 0; approve <= 10; approve++ {
		for _, base := range []float64{0, 0.25, 0.5, 0.9, 1} {
			d, err := a.Evaluate(base, "x", cityState(approve, 10-approve), true)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, d.Adjusted, 0.0)
			assert.LessOrEqual(t, d.Adjusted, 1.0)
		}
	}
}
