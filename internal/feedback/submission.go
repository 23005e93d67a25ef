package feedback

import (
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

// Submission is a feedback request as the HTTP and gRPC surfaces receive it.
type Submission struct {
	CaseID       string
	ProjectID    string
	City         string
	UserFeedback string // approve, reject, up or down
	Action       *int
	Input        *structpb.Struct
	Output       *structpb.Struct
}

// Event resolves s into an Event. An empty City falls back to the input
// snapshot's "city" field, and infer is consulted when Action is nil.
func (s Submission) Event(infer func(*structpb.Struct) (int, bool)) (Event, error) {
	pol, err := ParsePolarity(s.UserFeedback)
	if err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(s.CaseID) == "" {
		return Event{}, &ValidationError{Field: "case_id", Message: "must not be empty"}
	}

	city := s.City
	if strings.TrimSpace(city) == "" {
		if v, ok := s.Input.GetFields()["city"]; ok {
			city = v.GetStringValue()
		}
	}

	action := s.Action
	if action == nil && s.Output != nil && infer != nil {
		if a, ok := infer(s.Output); ok {
			action = ActionIndex(a)
		}
	}

	ev := Event{
		CaseID:    s.CaseID,
		ProjectID: s.ProjectID,
		City:      city,
		Polarity:  pol,
		Action:    action,
		Input:     s.Input,
		Output:    s.Output,
	}
	return ev, ev.Validate()
}
