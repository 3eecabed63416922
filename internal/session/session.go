// Package session persists named scan sessions to a local SQLite file
// so a long scan/filter chain survives process restarts. It is not
// part of the scanning core: a session store failure never aborts a
// scan, it only fails the persistence step.
package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"memprobe/internal/hits"
	"memprobe/internal/types"
)

// Session is a named, persisted scan/filter state: the target pid, the
// address and value types the hit set was produced with, and the
// expressions that got it there.
type Session struct {
	ID                 string
	Label              string
	PID                int
	AddrType           types.Tag
	ValueType          types.Tag
	CreatedAt          time.Time
	ExpressionHistory  []string
	Hits               *hits.Store
}

// Summary is the subset of a Session shown by the sessions CLI
// subcommand, without loading its full hit set.
type Summary struct {
	ID        string
	Label     string
	PID       int
	AddrType  types.Tag
	ValueType types.Tag
	CreatedAt time.Time
	HitCount  int
}

// Store wraps a modernc.org/sqlite-backed database/sql.DB holding the
// sessions and session_hits tables.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path and
// ensures the session schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			pid INTEGER NOT NULL,
			addr_type INTEGER NOT NULL,
			value_type INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			expression_history TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS session_hits (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			addr INTEGER NOT NULL,
			prev_value BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS session_hits_session_id
			ON session_hits(session_id);
	`)
	if err != nil {
		return fmt.Errorf("session: migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save upserts session by id and replaces its hit rows wholesale. The
// expression history is stored newline-joined since expressions never
// themselves contain a newline (the lexer treats \n as end-of-line).
func (s *Store) Save(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("session: begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, label, pid, addr_type, value_type, created_at, expression_history)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			pid = excluded.pid,
			addr_type = excluded.addr_type,
			value_type = excluded.value_type,
			expression_history = excluded.expression_history
	`, sess.ID, sess.Label, sess.PID, int(sess.AddrType), int(sess.ValueType),
		sess.CreatedAt.Unix(), joinHistory(sess.ExpressionHistory))
	if err != nil {
		return fmt.Errorf("session: upsert session row: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM session_hits WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("session: clear prior hits: %w", err)
	}

	if sess.Hits != nil {
		stmt, err := tx.Prepare(`INSERT INTO session_hits (session_id, addr, prev_value) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("session: prepare hit insert: %w", err)
		}
		defer stmt.Close()
		for i := 0; i < sess.Hits.Len(); i++ {
			h := sess.Hits.At(i)
			if _, err := stmt.Exec(sess.ID, int64(h.Addr), h.Value.Bytes()); err != nil {
				return fmt.Errorf("session: insert hit: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Load reconstructs a Session and its hits store by id.
func (s *Store) Load(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT label, pid, addr_type, value_type, created_at, expression_history
		FROM sessions WHERE id = ?
	`, id)

	var (
		label               string
		pid, addrType, vt   int
		createdAtUnix       int64
		expressionHistory   string
	)
	if err := row.Scan(&label, &pid, &addrType, &vt, &createdAtUnix, &expressionHistory); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session: %q not found", id)
		}
		return nil, fmt.Errorf("session: load %q: %w", id, err)
	}

	valueType := types.Tag(vt)
	rows, err := s.db.Query(`SELECT addr, prev_value FROM session_hits WHERE session_id = ? ORDER BY addr`, id)
	if err != nil {
		return nil, fmt.Errorf("session: load hits for %q: %w", id, err)
	}
	defer rows.Close()

	var loaded []hits.Hit
	for rows.Next() {
		var addr int64
		var data []byte
		if err := rows.Scan(&addr, &data); err != nil {
			return nil, fmt.Errorf("session: scan hit row: %w", err)
		}
		loaded = append(loaded, hits.Hit{Addr: uint64(addr), Value: types.FromBytes(valueType, data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate hit rows: %w", err)
	}

	return &Session{
		ID:                id,
		Label:             label,
		PID:               pid,
		AddrType:          types.Tag(addrType),
		ValueType:         valueType,
		CreatedAt:         time.Unix(createdAtUnix, 0),
		ExpressionHistory: splitHistory(expressionHistory),
		Hits:              hits.NewFromHits(loaded),
	}, nil
}

// LoadByLabel resolves the most recently created session with the
// given label, for the CLI's "--session LABEL" flag.
func (s *Store) LoadByLabel(label string) (*Session, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT id FROM sessions WHERE label = ? ORDER BY created_at DESC LIMIT 1
	`, label).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session: no session labeled %q", label)
	}
	if err != nil {
		return nil, fmt.Errorf("session: resolve label %q: %w", label, err)
	}
	return s.Load(id)
}

// List returns a summary of every saved session, most recent first.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.label, s.pid, s.addr_type, s.value_type, s.created_at,
		       (SELECT COUNT(*) FROM session_hits WHERE session_id = s.id)
		FROM sessions s
		ORDER BY s.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var addrType, valueType int
		var createdAtUnix int64
		if err := rows.Scan(&sm.ID, &sm.Label, &sm.PID, &addrType, &valueType, &createdAtUnix, &sm.HitCount); err != nil {
			return nil, fmt.Errorf("session: scan summary row: %w", err)
		}
		sm.AddrType = types.Tag(addrType)
		sm.ValueType = types.Tag(valueType)
		sm.CreatedAt = time.Unix(createdAtUnix, 0)
		out = append(out, sm)
	}
	return out, rows.Err()
}

func joinHistory(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func splitHistory(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
