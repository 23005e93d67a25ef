package logging

import "time"

// #region adaptation-entry
// AdaptationEntry is a single row in the adaptation_log table: what one feedback
// event did to its city's weight state.
type AdaptationEntry struct {
	EventID      string    `json:"event_id"`
	CaseID       string    `json:"case_id"`
	City         string    `json:"city"`
	Polarity     string    `json:"polarity"`
	Action       *int      `json:"action,omitempty"`
	OldWeight    float64   `json:"old_weight"`
	NewWeight    float64   `json:"new_weight"`
	ApprovalRate float64   `json:"approval_rate"`
	Multiplier   float64   `json:"multiplier"`
	AuditTrail   []string  `json:"audit_trail"`
	CreatedAt    time.Time `json:"created_at"`
}

// WeightChange returns new - old, or 0 when no action weight moved.
func (e AdaptationEntry) WeightChange() float64 {
	if e.Action == nil {
		return 0
	}
	return e.NewWeight - e.OldWeight
}
// #endregion adaptation-entry
