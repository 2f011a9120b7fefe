package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS points (
	id          INTEGER PRIMARY KEY,
	measurement TEXT    NOT NULL,
	ts          INTEGER NOT NULL,
	tags        TEXT    NOT NULL,
	fields      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS points_measurement_ts ON points (measurement, ts);
`

// SQLiteWriter stores points in a local SQLite database. A single connection
// is shared under a mutex; the session writes one point at a time.
type SQLiteWriter struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	path string
	now  func() time.Time
}

var _ Writer = (*SQLiteWriter)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteWriter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite sink: path is empty")
	}
	conn, err := sqlite.OpenConn(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open %s: %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout = 5000", nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite sink: busy_timeout: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite sink: create schema: %w", err)
	}
	return &SQLiteWriter{conn: conn, path: path, now: time.Now}, nil
}

// WritePoints inserts all points in one transaction.
func (w *SQLiteWriter) WritePoints(ctx context.Context, points ...Point) (err error) {
	if len(points) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return fmt.Errorf("sqlite sink: closed")
	}

	w.conn.SetInterrupt(ctx.Done())
	defer w.conn.SetInterrupt(nil)

	endTransaction, err := sqlitex.ImmediateTransaction(w.conn)
	if err != nil {
		return fmt.Errorf("sqlite sink: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, p := range points {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("sqlite sink: encode tags: %w", err)
		}
		fields, err := json.Marshal(p.Fields)
		if err != nil {
			return fmt.Errorf("sqlite sink: encode fields: %w", err)
		}
		ts := p.Time
		if ts.IsZero() {
			ts = w.now()
		}
		err = sqlitex.Execute(w.conn,
			"INSERT INTO points (measurement, ts, tags, fields) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{p.Measurement, ts.UnixNano(), string(tags), string(fields)}})
		if err != nil {
			return fmt.Errorf("sqlite sink: insert %s: %w", p.Measurement, err)
		}
	}
	return nil
}

// Points returns the stored points for measurement, oldest first.
func (w *SQLiteWriter) Points(ctx context.Context, measurement string) ([]Point, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil, fmt.Errorf("sqlite sink: closed")
	}

	w.conn.SetInterrupt(ctx.Done())
	defer w.conn.SetInterrupt(nil)

	var out []Point
	err := sqlitex.Execute(w.conn,
		"SELECT measurement, ts, tags, fields FROM points WHERE measurement = ? ORDER BY id",
		&sqlitex.ExecOptions{
			Args: []any{measurement},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				p := Point{
					Measurement: stmt.ColumnText(0),
					Time:        time.Unix(0, stmt.ColumnInt64(1)),
				}
				if err := json.Unmarshal([]byte(stmt.ColumnText(2)), &p.Tags); err != nil {
					return fmt.Errorf("decode tags: %w", err)
				}
				if err := json.Unmarshal([]byte(stmt.ColumnText(3)), &p.Fields); err != nil {
					return fmt.Errorf("decode fields: %w", err)
				}
				out = append(out, p)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: query %s: %w", measurement, err)
	}
	return out, nil
}

// Close closes the connection. Further writes fail.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	if err != nil {
		return fmt.Errorf("sqlite sink: close %s: %w", w.path, err)
	}
	return nil
}
