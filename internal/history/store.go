// Package history keeps a local copy of every document session: the chat
// transcript, the collected values and where the result was saved. It is
// written to as the workflow runs and read by the history/show/search
// commands.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Zuo-Peng/docfill/internal/session"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sessions (
    session_id       TEXT PRIMARY KEY,
    template         TEXT NOT NULL DEFAULT '',
    server_url       TEXT NOT NULL DEFAULT '',
    phase            TEXT NOT NULL DEFAULT 'chat',
    progress_current INTEGER NOT NULL DEFAULT 0,
    progress_total   INTEGER NOT NULL DEFAULT 0,
    download_path    TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL DEFAULT '',
    updated_at       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS messages (
    session_id TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    sender     TEXT NOT NULL,
    text       TEXT NOT NULL,
    ts         TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (session_id, seq)
);

CREATE TABLE IF NOT EXISTS field_values (
    session_id  TEXT NOT NULL,
    placeholder TEXT NOT NULL,
    value       TEXT NOT NULL,
    PRIMARY KEY (session_id, placeholder)
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    text,
    content=messages,
    content_rowid=rowid,
    tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// schemaVersion is bumped whenever the tables above change shape.
const schemaVersion = "1"

// timeLayout sorts lexically in the same order as the times it encodes.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and its directory if needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if _, err := db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("write schema version: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SchemaVersion returns the version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'schema_version'").Scan(&v)
	return v, err
}

// StartSession records a new session. Starting an existing one only
// refreshes its template and server.
func (s *Store) StartSession(ctx context.Context, sessionID, template, serverURL string) error {
	now := s.stamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, template, server_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			template = excluded.template,
			server_url = excluded.server_url,
			updated_at = excluded.updated_at`,
		sessionID, template, serverURL, now, now,
	)
	if err != nil {
		return fmt.Errorf("start session %s: %w", sessionID, err)
	}
	return nil
}

// AppendMessage adds m after the last recorded message of the session.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, m session.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	at := m.At
	if at.IsZero() {
		at = s.now()
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (session_id, seq, sender, text, ts) VALUES (?, ?, ?, ?, ?)",
		sessionID, seq, string(m.Sender), m.Text, formatTime(at),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := touch(ctx, tx, sessionID, s.stamp()); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveProgress stores the question cursor and phase.
func (s *Store) SaveProgress(ctx context.Context, sessionID string, p session.Progress, phase session.Phase) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET progress_current = ?, progress_total = ?, phase = ?, updated_at = ?
		WHERE session_id = ?`,
		p.Current, p.Total, phase.String(), s.stamp(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// SaveValues replaces the stored values with values.
func (s *Store) SaveValues(ctx context.Context, sessionID string, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM field_values WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear values: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO field_values (session_id, placeholder, value) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, sessionID, k, v); err != nil {
			return fmt.Errorf("insert value %s: %w", k, err)
		}
	}
	if err := touch(ctx, tx, sessionID, s.stamp()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) MarkDownloaded(ctx context.Context, sessionID, path string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET download_path = ?, updated_at = ? WHERE session_id = ?",
		path, s.stamp(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("mark downloaded: %w", err)
	}
	return nil
}

func touch(ctx context.Context, tx *sql.Tx, sessionID, now string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE session_id = ?", now, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

type SessionRow struct {
	SessionID    string
	Template     string
	ServerURL    string
	Phase        string
	Progress     session.Progress
	DownloadPath string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Messages     int
}

type ListOptions struct {
	Since time.Time // zero = no filter
	Limit int
}

const sessionColumns = `
	s.session_id, s.template, s.server_url, s.phase,
	s.progress_current, s.progress_total, s.download_path,
	s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (SessionRow, error) {
	var row SessionRow
	var created, updated string
	err := r.Scan(
		&row.SessionID, &row.Template, &row.ServerURL, &row.Phase,
		&row.Progress.Current, &row.Progress.Total, &row.DownloadPath,
		&created, &updated, &row.Messages,
	)
	row.CreatedAt = parseTime(created)
	row.UpdatedAt = parseTime(updated)
	return row, err
}

// ListSessions returns sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, opts ListOptions) ([]SessionRow, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	query := "SELECT" + sessionColumns + " FROM sessions s"
	var args []any
	if !opts.Since.IsZero() {
		query += " WHERE s.updated_at >= ?"
		args = append(args, formatTime(opts.Since))
	}
	query += " ORDER BY s.updated_at DESC LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		row, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetSession returns nil, nil when the session is unknown.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRow, error) {
	row, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT"+sessionColumns+" FROM sessions s WHERE s.session_id = ?", sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetMessages returns the transcript in the order it was recorded.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT sender, text, ts FROM messages WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Message
	for rows.Next() {
		var m session.Message
		var sender, ts string
		if err := rows.Scan(&sender, &m.Text, &ts); err != nil {
			return nil, err
		}
		m.Sender = session.Sender(sender)
		m.At = parseTime(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetValues(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT placeholder, value FROM field_values WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteSession(ctx, tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSession(ctx context.Context, tx *sql.Tx, sessionID string) error {
	for _, table := range []string{"messages", "field_values", "sessions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// Prune deletes sessions not updated since before and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT session_id FROM sessions WHERE updated_at < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("find stale sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := deleteSession(ctx, tx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), tx.Commit()
}

type Stats struct {
	Sessions int
	Messages int
	Indexed  int // rows in messages_fts; equals Messages when in sync
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&st.Sessions); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&st.Messages); err != nil {
		return st, err
	}
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages_fts").Scan(&st.Indexed)
	return st, err
}
