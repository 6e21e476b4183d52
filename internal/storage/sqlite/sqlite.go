// Package sqlite is the SQLite persistence backend. Sessions and captures
// are stored as their versioned export payloads next to a few queryable
// metadata columns; breakpoints are stored relationally so they can be
// listed without decoding anything.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/session"
	"github.com/pulsedev/retrace/internal/snapshot"
	"github.com/pulsedev/retrace/internal/storage"
	"github.com/pulsedev/retrace/internal/types"
)

// Store implements storage.Storage on a single SQLite database file.
type Store struct {
	db *sql.DB
}

var _ storage.Storage = (*Store)(nil)

// New opens (creating if needed) the database at path and initializes the
// schema. WAL mode keeps readers unblocked while a recording is saved.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession stores a session, replacing any prior row with the same id.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	payload, err := session.Export(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, started_at, ended_at, status, snapshot_count, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.EndedAt, string(sess.Status), sess.Len(), payload)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession loads and decodes a stored session.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	sess, err := session.Import(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns metadata for every stored session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]storage.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, status, snapshot_count
		FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var infos []storage.SessionInfo
	for rows.Next() {
		var info storage.SessionInfo
		var ended sql.NullTime
		if err := rows.Scan(&info.ID, &info.StartedAt, &ended, &info.Status, &info.SnapshotCount); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			info.EndedAt = &t
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteSession removes a stored session. Deleting an unknown id is an
// error so callers can distinguish typos from success.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return requireRowAffected(result, "session", id)
}

// SaveCapture stores a named capture, replacing any prior row with the same
// id.
func (s *Store) SaveCapture(ctx context.Context, c *snapshot.Capture) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode capture: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO captures (id, name, created_at, object_count, payload)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Timestamp, len(c.Memory.Heap), payload)
	if err != nil {
		return fmt.Errorf("failed to save capture %s: %w", c.ID, err)
	}
	return nil
}

// GetCapture loads and decodes a stored capture.
func (s *Store) GetCapture(ctx context.Context, id string) (*snapshot.Capture, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM captures WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("capture not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load capture %s: %w", id, err)
	}
	var c snapshot.Capture
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to decode capture %s: %w", id, err)
	}
	return &c, nil
}

// ListCaptures returns metadata for every stored capture, newest first.
func (s *Store) ListCaptures(ctx context.Context) ([]storage.CaptureInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, object_count
		FROM captures ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var infos []storage.CaptureInfo
	for rows.Next() {
		var info storage.CaptureInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.ObjectCount); err != nil {
			return nil, fmt.Errorf("failed to scan capture row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteCapture removes a stored capture.
func (s *Store) DeleteCapture(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete capture %s: %w", id, err)
	}
	return requireRowAffected(result, "capture", id)
}

// SaveBreakpoint upserts a breakpoint row. The compiled condition is not
// stored; ListBreakpoints returns breakpoints ready for Manager.Install,
// which recompiles from the condition text.
func (s *Store) SaveBreakpoint(ctx context.Context, bp *breakpoint.Breakpoint) error {
	if bp.Location == nil {
		return fmt.Errorf("breakpoint %s has no location", bp.ID)
	}
	hitCondition := ""
	if bp.HitCondition != nil {
		hitCondition = bp.HitCondition.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO breakpoints
		(id, file, line, column_number, function_name, condition_text, hit_condition, log_message, enabled, state, message, hit_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bp.ID, bp.Location.File, bp.Location.Line, bp.Location.Column, bp.Location.Function,
		bp.ConditionText, hitCondition, bp.LogMessage, bp.Enabled, string(bp.State), bp.Message,
		bp.HitCount, bp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save breakpoint %s: %w", bp.ID, err)
	}
	return nil
}

// ListBreakpoints returns every stored breakpoint in creation order.
func (s *Store) ListBreakpoints(ctx context.Context) ([]*breakpoint.Breakpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, line, column_number, function_name, condition_text, hit_condition, log_message, enabled, state, message, hit_count, created_at
		FROM breakpoints ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list breakpoints: %w", err)
	}
	defer rows.Close()

	var bps []*breakpoint.Breakpoint
	for rows.Next() {
		var (
			bp           breakpoint.Breakpoint
			loc          types.SourceLocation
			hitCondition string
			state        string
			createdAt    time.Time
		)
		if err := rows.Scan(&bp.ID, &loc.File, &loc.Line, &loc.Column, &loc.Function,
			&bp.ConditionText, &hitCondition, &bp.LogMessage, &bp.Enabled, &state, &bp.Message,
			&bp.HitCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan breakpoint row: %w", err)
		}
		bp.Location = &loc
		bp.State = breakpoint.State(state)
		bp.CreatedAt = createdAt
		if hitCondition != "" {
			parsed, err := breakpoint.ParseHitCondition(hitCondition)
			if err != nil {
				return nil, fmt.Errorf("breakpoint %s has invalid hit condition %q: %w", bp.ID, hitCondition, err)
			}
			bp.HitCondition = parsed
		}
		bps = append(bps, &bp)
	}
	return bps, rows.Err()
}

// DeleteBreakpoint removes a stored breakpoint.
func (s *Store) DeleteBreakpoint(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM breakpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete breakpoint %s: %w", id, err)
	}
	return requireRowAffected(result, "breakpoint", id)
}

func requireRowAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
