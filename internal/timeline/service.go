// Package timeline persists the bot's audit trail in SQLite.
package timeline

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/usherbot/usherbot/internal/bus"
)

type TimelineService struct {
	db *sql.DB
}

func NewTimelineService(dbPath string) (*TimelineService, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create timeline dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &TimelineService{db: db}, nil
}

func (s *TimelineService) Close() error {
	return s.db.Close()
}

// AddEvent inserts evt, filling in EventID and Timestamp when unset.
func (s *TimelineService) AddEvent(evt *TimelineEvent) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`
	INSERT INTO timeline (event_id, trace_id, timestamp, kind, subject, content_text, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		evt.EventID,
		evt.TraceID,
		evt.Timestamp.UTC(),
		evt.Kind,
		evt.Subject,
		evt.Text,
		evt.Metadata,
	)
	return err
}

// Record stores a bus notice. Failures are logged, not returned, so it can
// be used directly as a bus subscriber.
func (s *TimelineService) Record(n *bus.Notice) {
	evt := &TimelineEvent{
		TraceID:   n.TraceID,
		Timestamp: n.At,
		Kind:      n.Kind,
		Subject:   n.Subject,
		Text:      n.Text,
	}
	if len(n.Metadata) > 0 {
		if raw, err := json.Marshal(n.Metadata); err == nil {
			evt.Metadata = string(raw)
		}
	}
	if err := s.AddEvent(evt); err != nil {
		slog.Warn("Audit write failed", "kind", n.Kind, "error", err)
	}
}

type FilterArgs struct {
	Kind      string
	Subject   string
	TraceID   string
	Limit     int
	Offset    int
	StartDate *time.Time
	EndDate   *time.Time
}

// GetEvents returns matching events, newest first.
func (s *TimelineService) GetEvents(filter FilterArgs) ([]TimelineEvent, error) {
	query := `SELECT id, event_id, COALESCE(trace_id,''), timestamp, kind, COALESCE(subject,''), COALESCE(content_text,''), COALESCE(metadata,'') FROM timeline WHERE 1=1`
	args := []any{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Subject != "" {
		query += " AND subject = ?"
		args = append(args, filter.Subject)
	}
	if filter.TraceID != "" {
		query += " AND trace_id = ?"
		args = append(args, filter.TraceID)
	}
	if filter.StartDate != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var e TimelineEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.TraceID, &e.Timestamp, &e.Kind, &e.Subject, &e.Text, &e.Metadata); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByKind summarises the audit trail.
func (s *TimelineService) CountByKind() ([]KindCount, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM timeline GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

// Prune deletes events older than cutoff and reports how many went.
func (s *TimelineService) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM timeline WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetSetting returns a setting value, or "" and no error when unset.
func (s *TimelineService) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetSetting persists a setting value.
func (s *TimelineService) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}
