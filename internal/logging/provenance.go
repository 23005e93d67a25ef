package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region schema
// Schema creates the adaptation_log table. The state store runs it with its own migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS adaptation_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id      TEXT NOT NULL,
	case_id       TEXT,
	city          TEXT NOT NULL,
	polarity      TEXT NOT NULL,
	action        INTEGER,
	old_weight    REAL,
	new_weight    REAL,
	approval_rate REAL NOT NULL,
	multiplier    REAL NOT NULL,
	audit_json    TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_adaptation_log_city ON adaptation_log(city);
`
// #endregion schema

// #region log-adaptation
// LogAdaptation writes an entry to the adaptation_log table.
func LogAdaptation(db *sql.DB, entry AdaptationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var auditJSON interface{}
	if len(entry.AuditTrail) > 0 {
		data, err := json.Marshal(entry.AuditTrail)
		if err != nil {
			return fmt.Errorf("marshal audit trail: %w", err)
		}
		auditJSON = string(data)
	}

	var action, oldWeight, newWeight interface{}
	if entry.Action != nil {
		action = *entry.Action
		oldWeight = entry.OldWeight
		newWeight = entry.NewWeight
	}

	_, err := db.Exec(
		`INSERT INTO adaptation_log (event_id, case_id, city, polarity, action, old_weight, new_weight, approval_rate, multiplier, audit_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EventID,
		nullIfEmpty(entry.CaseID),
		entry.City,
		entry.Polarity,
		action,
		oldWeight,
		newWeight,
		entry.ApprovalRate,
		entry.Multiplier,
		auditJSON,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log adaptation: %w", err)
	}
	return nil
}
// #endregion log-adaptation

// #region recent
// RecentAdaptations returns up to limit entries, newest first.
func RecentAdaptations(db *sql.DB, limit int) ([]AdaptationEntry, error) {
	rows, err := db.Query(
		`SELECT event_id, case_id, city, polarity, action, old_weight, new_weight, approval_rate, multiplier, audit_json, created_at
		 FROM adaptation_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent adaptations: %w", err)
	}
	defer rows.Close()

	var entries []AdaptationEntry
	for rows.Next() {
		var e AdaptationEntry
		var caseID, auditJSON sql.NullString
		var action sql.NullInt64
		var oldWeight, newWeight sql.NullFloat64
		var createdStr string

		if err := rows.Scan(&e.EventID, &caseID, &e.City, &e.Polarity, &action, &oldWeight, &newWeight,
			&e.ApprovalRate, &e.Multiplier, &auditJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan adaptation: %w", err)
		}
		e.CaseID = caseID.String
		if action.Valid {
			a := int(action.Int64)
			e.Action = &a
			e.OldWeight = oldWeight.Float64
			e.NewWeight = newWeight.Float64
		}
		if auditJSON.Valid {
			if err := json.Unmarshal([]byte(auditJSON.String), &e.AuditTrail); err != nil {
				return nil, fmt.Errorf("unmarshal audit trail: %w", err)
			}
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
