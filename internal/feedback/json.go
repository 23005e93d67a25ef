package feedback

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// eventJSON is the wire shape of an Event used by fixtures and HTTP responses.
type eventJSON struct {
	ID        string         `json:"id,omitempty"`
	CaseID    string         `json:"case_id"`
	ProjectID string         `json:"project_id,omitempty"`
	City      string         `json:"city"`
	Polarity  Polarity       `json:"polarity"`
	Action    *int           `json:"action,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
}

// MarshalJSON renders snapshots as plain JSON objects.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:        e.ID,
		CaseID:    e.CaseID,
		ProjectID: e.ProjectID,
		City:      e.City,
		Polarity:  e.Polarity,
		Action:    e.Action,
		Timestamp: e.Timestamp,
		Input:     e.Input.AsMap(),
		Output:    e.Output.AsMap(),
	})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON. Polarity aliases are allowed.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pol, err := ParsePolarity(string(raw.Polarity))
	if err != nil {
		return err
	}
	in, err := Snapshot(raw.Input)
	if err != nil {
		return fmt.Errorf("input snapshot: %w", err)
	}
	out, err := Snapshot(raw.Output)
	if err != nil {
		return fmt.Errorf("output snapshot: %w", err)
	}
	*e = Event{
		ID:        raw.ID,
		CaseID:    raw.CaseID,
		ProjectID: raw.ProjectID,
		City:      raw.City,
		Polarity:  pol,
		Action:    raw.Action,
		Timestamp: raw.Timestamp,
		Input:     in,
		Output:    out,
	}
	return nil
}

// Snapshot converts a decoded JSON object into an opaque snapshot. nil stays nil.
func Snapshot(m map[string]any) (*structpb.Struct, error) {
	if m == nil {
		return nil, nil
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, &ValidationError{Field: "snapshot", Message: err.Error()}
	}
	return s, nil
}
