package eval

import "github.com/danielpatrickdp/city-adaptive/go-controller/internal/update"

// #region eval-config
// EvalConfig holds the bounds a persisted city state must satisfy.
type EvalConfig struct {
	MinWeight   float64 // reject if any weight falls below this
	MaxWeight   float64 // reject if any weight exceeds this
	ActionCount int     // required number of weights
}

// DefaultEvalConfig mirrors update.DefaultConfig().
func DefaultEvalConfig() EvalConfig {
	return ConfigFrom(update.DefaultConfig())
}

// ConfigFrom derives validation bounds from the update parameters in use.
func ConfigFrom(c update.Config) EvalConfig {
	return EvalConfig{
		MinWeight:   c.MinWeight,
		MaxWeight:   c.MaxWeight,
		ActionCount: c.ActionCount,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-update validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
