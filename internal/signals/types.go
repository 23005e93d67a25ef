package signals

import "google.golang.org/protobuf/types/known/structpb"

// #region inferrer-interface

// Inferrer recovers the recommended action index from an output snapshot.
// ok is false when the snapshot carries nothing the inferrer understands.
type Inferrer interface {
	Infer(output *structpb.Struct) (action int, ok bool)
}

// InferrerFunc adapts a plain function to Inferrer.
type InferrerFunc func(output *structpb.Struct) (int, bool)

func (f InferrerFunc) Infer(output *structpb.Struct) (int, bool) {
	return f(output)
}

// #endregion inferrer-interface

// #region config

// FSIConfig holds the thresholds that split a floor space index into low/medium/high.
type FSIConfig struct {
	Field     string  `yaml:"field"`      // numeric field holding the FSI (default "fsi")
	LowBelow  float64 `yaml:"low_below"`  // fsi < LowBelow → action 0 (default 1.5)
	HighAbove float64 `yaml:"high_above"` // fsi > HighAbove → action 2 (default 2.5)
}

// DefaultFSIConfig returns the 1.5 / 2.5 split.
func DefaultFSIConfig() FSIConfig {
	return FSIConfig{
		Field:     "fsi",
		LowBelow:  1.5,
		HighAbove: 2.5,
	}
}

// #endregion config
