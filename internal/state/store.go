package state

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/logging"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS feedback_events (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id      TEXT NOT NULL UNIQUE,
	case_id       TEXT NOT NULL,
	project_id    TEXT,
	city          TEXT NOT NULL,
	polarity      TEXT NOT NULL CHECK (polarity IN ('approve', 'reject')),
	action        INTEGER,
	created_at    TEXT NOT NULL,
	input_json    TEXT,
	output_json   TEXT
);

CREATE INDEX IF NOT EXISTS idx_feedback_events_city ON feedback_events(city, seq);
CREATE INDEX IF NOT EXISTS idx_feedback_events_case ON feedback_events(case_id, seq);

CREATE TRIGGER IF NOT EXISTS feedback_events_no_update
BEFORE UPDATE ON feedback_events
BEGIN
	SELECT RAISE(ABORT, 'feedback_events is append-only');
END;

CREATE TRIGGER IF NOT EXISTS feedback_events_no_delete
BEFORE DELETE ON feedback_events
BEGIN
	SELECT RAISE(ABORT, 'feedback_events is append-only');
END;

CREATE TABLE IF NOT EXISTS city_weights (
	city           TEXT PRIMARY KEY,
	action_weights BLOB NOT NULL,
	approve_count  INTEGER NOT NULL CHECK (approve_count >= 0),
	reject_count   INTEGER NOT NULL CHECK (reject_count >= 0),
	updated_at     TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store keeps the feedback ledger, the per-city weight table and the adaptation log in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma sync: %w", err)
	}
	s, err := NewStoreWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an already-open database and runs migrations on it.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.Exec(logging.Schema); err != nil {
		return nil, fmt.Errorf("migrate adaptation log: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region ledger
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Record validates and appends a single event outside of any weight update.
func (s *Store) Record(ev feedback.Event) (string, error) {
	ev, err := prepareEvent(ev)
	if err != nil {
		return "", err
	}
	if err := insertEvent(s.db, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// CommitFeedback appends ev and overwrites st in one transaction.
func (s *Store) CommitFeedback(ev feedback.Event, st CityWeightState) (string, error) {
	ev, err := prepareEvent(ev)
	if err != nil {
		return "", err
	}
	if st.City != ev.City {
		return "", fmt.Errorf("commit feedback: state city %q does not match event city %q", st.City, ev.City)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEvent(tx, ev); err != nil {
		return "", err
	}
	if err := upsertWeights(tx, st); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return ev.ID, nil
}

// EventsForCity returns a city's events in insertion order.
func (s *Store) EventsForCity(city string) ([]feedback.Event, error) {
	key, err := feedback.NormalizeCity(city)
	if err != nil {
		return nil, err
	}
	return s.queryEvents(`WHERE city = ?`, key)
}

// EventsForCase returns every event submitted for one case, oldest first.
func (s *Store) EventsForCase(caseID string) ([]feedback.Event, error) {
	return s.queryEvents(`WHERE case_id = ?`, caseID)
}

// AllEvents returns the whole ledger in insertion order.
func (s *Store) AllEvents() ([]feedback.Event, error) {
	return s.queryEvents(``)
}

// CountByPolarity aggregates a city's events.
func (s *Store) CountByPolarity(city string) (approve, reject int, err error) {
	key, err := feedback.NormalizeCity(city)
	if err != nil {
		return 0, 0, err
	}
	err = s.db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN polarity = 'approve' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN polarity = 'reject' THEN 1 ELSE 0 END), 0)
		 FROM feedback_events WHERE city = ?`, key,
	).Scan(&approve, &reject)
	if err != nil {
		return 0, 0, fmt.Errorf("count by polarity: %w", err)
	}
	return approve, reject, nil
}

func (s *Store) queryEvents(where string, args ...interface{}) ([]feedback.Event, error) {
	rows, err := s.db.Query(
		`SELECT event_id, case_id, project_id, city, polarity, action, created_at, input_json, output_json
		 FROM feedback_events `+where+` ORDER BY seq ASC`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []feedback.Event{}
	for rows.Next() {
		var ev feedback.Event
		var projectID, inputJSON, outputJSON sql.NullString
		var action sql.NullInt64
		var polarity, createdStr string

		if err := rows.Scan(&ev.ID, &ev.CaseID, &projectID, &ev.City, &polarity, &action,
			&createdStr, &inputJSON, &outputJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.ProjectID = projectID.String
		ev.Polarity = feedback.Polarity(polarity)
		if action.Valid {
			ev.Action = feedback.ActionIndex(int(action.Int64))
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		if ev.Input, err = decodeSnapshot(inputJSON); err != nil {
			return nil, fmt.Errorf("event %s input: %w", ev.ID, err)
		}
		if ev.Output, err = decodeSnapshot(outputJSON); err != nil {
			return nil, fmt.Errorf("event %s output: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func prepareEvent(ev feedback.Event) (feedback.Event, error) {
	if err := ev.Validate(); err != nil {
		return feedback.Event{}, err
	}
	ev.City, _ = feedback.NormalizeCity(ev.City)
	ev.ID = uuid.New().String()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}

func insertEvent(x execer, ev feedback.Event) error {
	inputJSON, err := encodeSnapshot(ev.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	outputJSON, err := encodeSnapshot(ev.Output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	var action interface{}
	if ev.Action != nil {
		action = *ev.Action
	}
	var projectID interface{}
	if ev.ProjectID != "" {
		projectID = ev.ProjectID
	}

	_, err = x.Exec(
		`INSERT INTO feedback_events (event_id, case_id, project_id, city, polarity, action, created_at, input_json, output_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CaseID, projectID, ev.City, string(ev.Polarity), action,
		ev.Timestamp.Format(time.RFC3339Nano), inputJSON, outputJSON,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
// #endregion ledger

// #region weights
// Load reads a city's weight state. The bool is false when the city has never been seen.
func (s *Store) Load(city string) (CityWeightState, bool, error) {
	key, err := feedback.NormalizeCity(city)
	if err != nil {
		return CityWeightState{}, false, err
	}

	var st CityWeightState
	var blob []byte
	var updatedStr string
	err = s.db.QueryRow(
		`SELECT city, action_weights, approve_count, reject_count, updated_at
		 FROM city_weights WHERE city = ?`, key,
	).Scan(&st.City, &blob, &st.ApproveCount, &st.RejectCount, &updatedStr)
	if err == sql.ErrNoRows {
		return CityWeightState{}, false, nil
	}
	if err != nil {
		return CityWeightState{}, false, fmt.Errorf("load weights %s: %w", key, err)
	}
	st.ActionWeights = decodeWeights(blob)
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return st, true, nil
}

// Save overwrites a city's weight state.
func (s *Store) Save(st CityWeightState) error {
	key, err := feedback.NormalizeCity(st.City)
	if err != nil {
		return err
	}
	st.City = key
	return upsertWeights(s.db, st)
}

// List returns every city's weight state ordered by city key.
func (s *Store) List() ([]CityWeightState, error) {
	rows, err := s.db.Query(
		`SELECT city, action_weights, approve_count, reject_count, updated_at
		 FROM city_weights ORDER BY city ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	defer rows.Close()

	var states []CityWeightState
	for rows.Next() {
		var st CityWeightState
		var blob []byte
		var updatedStr string
		if err := rows.Scan(&st.City, &blob, &st.ApproveCount, &st.RejectCount, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		st.ActionWeights = decodeWeights(blob)
		st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		states = append(states, st)
	}
	return states, rows.Err()
}

func upsertWeights(x execer, st CityWeightState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	_, err := x.Exec(
		`INSERT INTO city_weights (city, action_weights, approve_count, reject_count, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(city) DO UPDATE SET
			action_weights = excluded.action_weights,
			approve_count  = excluded.approve_count,
			reject_count   = excluded.reject_count,
			updated_at     = excluded.updated_at`,
		st.City, encodeWeights(st.ActionWeights), st.ApproveCount, st.RejectCount,
		st.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save weights %s: %w", st.City, err)
	}
	return nil
}
// #endregion weights

// #region adaptation-log
// LogAdaptation records provenance for one applied event.
func (s *Store) LogAdaptation(entry logging.AdaptationEntry) error {
	return logging.LogAdaptation(s.db, entry)
}

// RecentAdaptations returns the newest provenance entries first.
func (s *Store) RecentAdaptations(limit int) ([]logging.AdaptationEntry, error) {
	return logging.RecentAdaptations(s.db, limit)
}
// #endregion adaptation-log

// #region encoding
// Weights are stored as little-endian float64 bits so a reload is bit-identical.
func encodeWeights(w []float64) []byte {
	buf := make([]byte, len(w)*8)
	for i, f := range w {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeWeights(b []byte) []float64 {
	w := make([]float64, len(b)/8)
	for i := range w {
		w[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return w
}

func encodeSnapshot(s *structpb.Struct) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeSnapshot(ns sql.NullString) (*structpb.Struct, error) {
	if !ns.Valid {
		return nil, nil
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal([]byte(ns.String), s); err != nil {
		return nil, err
	}
	return s, nil
}
// #endregion encoding
