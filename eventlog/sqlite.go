package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	event_id        TEXT PRIMARY KEY,
	agent_id        TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	level           TEXT NOT NULL,
	message         TEXT NOT NULL,
	metadata        TEXT,
	timestamp       TEXT NOT NULL,
	duration_ms     INTEGER,
	reasoning_step  INTEGER,
	parent_event_id TEXT,
	thinking_chain  TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// SQLiteSink is the durable event store: an append-only events table in a
// local sqlite file, queryable after the process that wrote it is gone.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if needed) the sqlite store at path and
// ensures the schema exists. The journal runs in WAL mode so concurrent
// readers never block the writer.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("eventlog: create sqlite directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open sqlite store: %w", err)
	}
	// modernc sqlite is single-writer; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventlog: create sqlite schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write appends one event to the events table.
func (s *SQLiteSink) Write(e Event) error {
	var metadata, chain any
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("eventlog: marshal metadata: %w", err)
		}
		metadata = string(b)
	}
	if e.ThinkingChain != nil {
		b, err := json.Marshal(e.ThinkingChain)
		if err != nil {
			return fmt.Errorf("eventlog: marshal thinking chain: %w", err)
		}
		chain = string(b)
	}
	var parent any
	if e.ParentEventID != nil {
		parent = e.ParentEventID.String()
	}
	var duration, step any
	if e.DurationMs != nil {
		duration = *e.DurationMs
	}
	if e.ReasoningStep != nil {
		step = *e.ReasoningStep
	}

	_, err := s.db.Exec(`
		INSERT INTO events (event_id, agent_id, event_type, level, message, metadata,
			timestamp, duration_ms, reasoning_step, parent_event_id, thinking_chain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.AgentID, string(e.Type), string(e.Level), e.Message, metadata,
		e.Timestamp.Format(time.RFC3339Nano), duration, step, parent, chain,
	)
	if err != nil {
		return fmt.Errorf("eventlog: insert event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit stored events, newest first, optionally
// filtered by agent id.
func (s *SQLiteSink) RecentEvents(agentID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT event_id, agent_id, event_type, level, message, metadata,
		timestamp, duration_ms, reasoning_step, parent_event_id, thinking_chain
		FROM events`
	args := []any{}
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e                     Event
			id, ts                string
			metadata, chain       sql.NullString
			duration, step        sql.NullInt64
			parentID              sql.NullString
		)
		if err := rows.Scan(&id, &e.AgentID, (*string)(&e.Type), (*string)(&e.Level),
			&e.Message, &metadata, &ts, &duration, &step, &parentID, &chain); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("eventlog: parse event id: %w", err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("eventlog: parse timestamp: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("eventlog: unmarshal metadata: %w", err)
			}
		}
		if chain.Valid {
			if err := json.Unmarshal([]byte(chain.String), &e.ThinkingChain); err != nil {
				return nil, fmt.Errorf("eventlog: unmarshal thinking chain: %w", err)
			}
		}
		if duration.Valid {
			d := duration.Int64
			e.DurationMs = &d
		}
		if step.Valid {
			n := int(step.Int64)
			e.ReasoningStep = &n
		}
		if parentID.Valid {
			p, err := uuid.Parse(parentID.String)
			if err != nil {
				return nil, fmt.Errorf("eventlog: parse parent id: %w", err)
			}
			e.ParentEventID = &p
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByAgent returns the number of stored events for one agent.
func (s *SQLiteSink) CountByAgent(agentID string) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE agent_id = ?`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("eventlog: count events: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
