package trace

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scanforge/scanforge/internal/types"
)

const traceSchema = `
CREATE TABLE IF NOT EXISTS trace_records (
	request_id     TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	stage          TEXT NOT NULL,
	input_summary  TEXT NOT NULL DEFAULT '',
	output_summary TEXT NOT NULL DEFAULT '',
	timestamp      DATETIME NOT NULL,
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (request_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_trace_records_request ON trace_records(request_id);
`

// Store is the SQLite-backed Recorder for durable audit trails. Opened
// in WAL mode with a busy timeout so concurrent pipeline runs can
// append without stepping on each other; a write lock serializes
// sequence assignment.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// OpenStore opens (and migrates) the trace database at path.
func OpenStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.TRACE_OPEN_FAILED, "failed to open trace database", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, types.WrapError(types.TRACE_OPEN_FAILED, "trace database unreachable", err)
	}

	if _, err := conn.Exec(traceSchema); err != nil {
		conn.Close()
		return nil, types.WrapError(types.TRACE_OPEN_FAILED, "trace schema migration failed", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Append writes a record with the next sequence number for its request.
func (s *Store) Append(ctx context.Context, record Record) error {
	if err := record.RequestID.Validate(); err != nil {
		return types.WrapError(types.TRACE_WRITE_FAILED, "trace record without request id", err)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO trace_records
			(request_id, seq, stage, input_summary, output_summary, timestamp, duration_ms)
		VALUES
			(?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM trace_records WHERE request_id = ?),
			 ?, ?, ?, ?, ?)`,
		record.RequestID.String(),
		record.RequestID.String(),
		record.Stage,
		record.InputSummary,
		record.OutputSummary,
		record.Timestamp.UTC(),
		record.Duration.Milliseconds(),
	)
	if err != nil {
		return types.WrapError(types.TRACE_WRITE_FAILED, "failed to append trace record", err)
	}
	return nil
}

// ByRequest returns the ordered trail for a request ID.
func (s *Store) ByRequest(ctx context.Context, requestID types.ID) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT request_id, seq, stage, input_summary, output_summary, timestamp, duration_ms
		FROM trace_records
		WHERE request_id = ?
		ORDER BY seq ASC`,
		requestID.String(),
	)
	if err != nil {
		return nil, types.WrapError(types.TRACE_QUERY_FAILED, "failed to query trace records", err)
	}
	defer rows.Close()

	var trail []Record
	for rows.Next() {
		var rec Record
		var requestID string
		var durationMS int64
		if err := rows.Scan(&requestID, &rec.Seq, &rec.Stage, &rec.InputSummary,
			&rec.OutputSummary, &rec.Timestamp, &durationMS); err != nil {
			return nil, types.WrapError(types.TRACE_QUERY_FAILED, "failed to scan trace record", err)
		}
		rec.RequestID = types.ID(requestID)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		trail = append(trail, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.TRACE_QUERY_FAILED, "trace record iteration failed", err)
	}
	return trail, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

var _ Recorder = (*Store)(nil)
