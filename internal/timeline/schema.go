package timeline

import (
	"time"
)

// TimelineEvent is one audited bot action.
type TimelineEvent struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`    // mode, admission, promotion, remote, lifecycle, command
	Subject   string    `json:"subject"` // participant name or directive
	Text      string    `json:"text"`
	Metadata  string    `json:"metadata,omitempty"` // JSON blob
}

// KindCount is an aggregate row for the audit summary.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS timeline (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT UNIQUE NOT NULL,
	trace_id TEXT,
	timestamp DATETIME NOT NULL,
	kind TEXT NOT NULL,
	subject TEXT DEFAULT '',
	content_text TEXT DEFAULT '',
	metadata TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_timeline_timestamp ON timeline(timestamp);
CREATE INDEX IF NOT EXISTS idx_timeline_kind ON timeline(kind);
CREATE INDEX IF NOT EXISTS idx_timeline_trace ON timeline(trace_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
