package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region polarity

// Polarity is the direction of a single user judgment.
type Polarity string

const (
	Approve Polarity = "approve"
	Reject  Polarity = "reject"
)

// Valid reports whether p is one of the two allowed polarities.
func (p Polarity) Valid() bool {
	return p == Approve || p == Reject
}

// ParsePolarity accepts "approve"/"reject" and the thumbs aliases "up"/"down".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "up":
		return Approve, nil
	case "reject", "down":
		return Reject, nil
	}
	return "", &ValidationError{Field: "polarity", Message: fmt.Sprintf("%q is not approve or reject", s)}
}

// #endregion polarity

// #region event

// Event is one approve/reject judgment on one case. Input and Output are opaque
// snapshots: stored and returned verbatim, never inspected by the tracker.
type Event struct {
	ID        string
	CaseID    string
	ProjectID string
	City      string
	Polarity  Polarity
	Action    *int // nil when the recommended action could not be inferred
	Timestamp time.Time
	Input     *structpb.Struct
	Output    *structpb.Struct
}

// ActionIndex returns a pointer suitable for Event.Action.
func ActionIndex(i int) *int {
	return &i
}

// Validate checks the fields the ledger and tracker depend on.
func (e Event) Validate() error {
	if !e.Polarity.Valid() {
		return &ValidationError{Field: "polarity", Message: fmt.Sprintf("%q is not approve or reject", e.Polarity)}
	}
	if _, err := NormalizeCity(e.City); err != nil {
		return err
	}
	if e.Action != nil && *e.Action < 0 {
		return &ValidationError{Field: "action", Message: fmt.Sprintf("negative action index %d", *e.Action)}
	}
	return nil
}

// #endregion event

// #region city-key

// NormalizeCity folds a city name into its case-insensitive key.
func NormalizeCity(city string) (string, error) {
	key := cases.Fold().String(strings.TrimSpace(city))
	if key == "" {
		return "", &ValidationError{Field: "city", Message: "must not be empty"}
	}
	return key, nil
}

// #endregion city-key

// #region errors

// ValidationError reports malformed input. It is never worth retrying.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// #endregion errors
