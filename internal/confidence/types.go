package confidence

import "fmt"

// #region bucket
// Bucket maps approval rates at or above MinRate to a confidence multiplier.
type Bucket struct {
	MinRate    float64 `yaml:"min_rate"`
	Multiplier float64 `yaml:"multiplier"`
}

// #endregion bucket

// #region policy
// Policy is an ordered bucket table. The first bucket whose MinRate the rate
// reaches wins, so buckets must be sorted by descending MinRate.
type Policy struct {
	Buckets []Bucket `yaml:"buckets"`
}

// DefaultPolicy returns the 0.85/0.70/0.50 table.
func DefaultPolicy() Policy {
	return Policy{Buckets: []Bucket{
		{MinRate: 0.85, Multiplier: 1.10},
		{MinRate: 0.70, Multiplier: 1.00},
		{MinRate: 0.50, Multiplier: 0.90},
		{MinRate: 0, Multiplier: 0.80},
	}}
}

// Validate checks ordering, coverage down to a zero rate, and positive multipliers.
func (p Policy) Validate() error {
	if len(p.Buckets) == 0 {
		return fmt.Errorf("confidence policy: no buckets")
	}
	for i, b := range p.Buckets {
		if b.Multiplier <= 0 {
			return fmt.Errorf("confidence policy: bucket %d multiplier must be positive, got %g", i, b.Multiplier)
		}
		if b.MinRate < 0 || b.MinRate > 1 {
			return fmt.Errorf("confidence policy: bucket %d min_rate %g outside [0, 1]", i, b.MinRate)
		}
		if i > 0 && b.MinRate >= p.Buckets[i-1].MinRate {
			return fmt.Errorf("confidence policy: bucket %d min_rate %g not below %g", i, b.MinRate, p.Buckets[i-1].MinRate)
		}
	}
	if last := p.Buckets[len(p.Buckets)-1]; last.MinRate != 0 {
		return fmt.Errorf("confidence policy: last bucket must start at 0, got %g", last.MinRate)
	}
	return nil
}

// Multiplier returns the multiplier for an approval rate.
func (p Policy) Multiplier(rate float64) float64 {
	for _, b := range p.Buckets {
		if rate >= b.MinRate {
			return b.Multiplier
		}
	}
	return 1.0
}

// #endregion policy

// #region decision
// Decision is the output of a confidence adjustment.
type Decision struct {
	Base         float64 `json:"base_confidence"`
	Adjusted     float64 `json:"adjusted_confidence"`
	Multiplier   float64 `json:"multiplier"`
	ApprovalRate float64 `json:"approval_rate"`
	Cases        int     `json:"cases"`
	Seen         bool    `json:"seen"`
	Explanation  string  `json:"explanation"`
}

// #endregion decision
