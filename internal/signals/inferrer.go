package signals

import (
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// #region fsi

// FSIInferrer reads a numeric FSI field and buckets it.
type FSIInferrer struct {
	config FSIConfig
}

// NewFSIInferrer creates an FSIInferrer. An empty Field falls back to "fsi".
func NewFSIInferrer(config FSIConfig) *FSIInferrer {
	if config.Field == "" {
		config.Field = DefaultFSIConfig().Field
	}
	return &FSIInferrer{config: config}
}

func (f *FSIInferrer) Infer(output *structpb.Struct) (int, bool) {
	v := field(output, f.config.Field)
	if v == nil {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || math.IsNaN(n.NumberValue) {
		return 0, false
	}
	switch fsi := n.NumberValue; {
	case fsi < f.config.LowBelow:
		return 0, true
	case fsi <= f.config.HighAbove:
		return 1, true
	default:
		return 2, true
	}
}

// #endregion fsi

// #region rules

// RulesInferrer guesses the action from how many rules the output applied:
// more than two is high, any is medium, none is low.
type RulesInferrer struct {
	Field string
}

// NewRulesInferrer reads the "rules_applied" list.
func NewRulesInferrer() *RulesInferrer {
	return &RulesInferrer{Field: "rules_applied"}
}

func (r *RulesInferrer) Infer(output *structpb.Struct) (int, bool) {
	v := field(output, r.Field)
	if v == nil {
		return 0, false
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return 0, false
	}
	switch n := len(list.ListValue.GetValues()); {
	case n > 2:
		return 2, true
	case n > 0:
		return 1, true
	default:
		return 0, true
	}
}

// #endregion rules

// #region chain

// Chain asks each inferrer in order and returns the first answer.
type Chain []Inferrer

func (c Chain) Infer(output *structpb.Struct) (int, bool) {
	for _, inf := range c {
		if inf == nil {
			continue
		}
		if a, ok := inf.Infer(output); ok {
			return a, true
		}
	}
	return 0, false
}

// Default tries the FSI value first and falls back to the rule count.
func Default() Inferrer {
	return Chain{NewFSIInferrer(DefaultFSIConfig()), NewRulesInferrer()}
}

// #endregion chain

func field(s *structpb.Struct, name string) *structpb.Value {
	if s == nil {
		return nil
	}
	return s.GetFields()[name]
}
