// Package session owns the durable state shared by every console process
// of the same user: the bearer token and the last visited route. Both live
// in a small SQLite file so a second console (or a restart) sees them.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"omnibot-console/internal/routes"
)

const (
	// KeyToken stores the opaque bearer credential. Presence means
	// "authenticated"; an empty value means signed out.
	KeyToken = "auth_token"
	// KeyRoute stores the active route so a restart resumes the same screen.
	KeyRoute = "route"
)

// Change describes one observed store mutation.
type Change struct {
	Key   string
	Value string
}

// Store reads and writes the shared state. Every mutation is written
// through synchronously before the method returns; dependent re-renders
// and foreign watchers only ever see completed writes.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	writer   string
	lastSeen int64
	onChange func(Change)
}

// Open opens (or creates) the store at path. Each Store instance gets its
// own writer id; the watcher uses it to tell local writes from foreign ones.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	s := &Store{db: db, writer: uuid.NewString()}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Start the foreign-write cursor at the current tail so state that
	// predates this process is read explicitly, not replayed as changes.
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM console_state`).Scan(&s.lastSeen); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read state cursor: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 2000;`,
		`CREATE TABLE IF NOT EXISTS console_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			writer TEXT NOT NULL,
			seq INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init session schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// OnChange registers a callback fired after every local mutation. The
// watcher handles foreign mutations separately.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Token returns the stored bearer token and whether one is present.
func (s *Store) Token() (string, bool) {
	v, err := s.get(KeyToken)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Authenticated reports whether a bearer token is present.
func (s *Store) Authenticated() bool {
	_, ok := s.Token()
	return ok
}

func (s *Store) SetToken(token string) error {
	return s.set(KeyToken, token)
}

func (s *Store) ClearToken() error {
	return s.set(KeyToken, "")
}

// Route returns the persisted route, or "" when none was stored yet.
func (s *Store) Route() routes.ID {
	v, err := s.get(KeyRoute)
	if err != nil {
		return ""
	}
	return routes.ID(v)
}

func (s *Store) SetRoute(id routes.ID) error {
	return s.set(KeyRoute, string(id))
}

func (s *Store) get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v string
	err := s.db.QueryRow(`SELECT value FROM console_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) set(key, value string) error {
	s.mu.Lock()
	_, err := s.db.Exec(`
		INSERT INTO console_state(key, value, writer, seq)
		VALUES(?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM console_state))
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			writer=excluded.writer,
			seq=excluded.seq
	`, key, value, s.writer)
	fn := s.onChange
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if fn != nil {
		fn(Change{Key: key, Value: value})
	}
	return nil
}

// WriterID identifies this store instance in the shared file.
func (s *Store) WriterID() string {
	return s.writer
}

// pendingForeign returns mutations written after the cursor, advancing the
// cursor past everything it saw. Local writes advance the cursor silently.
func (s *Store) pendingForeign() ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT key, value, writer, seq FROM console_state
		WHERE seq > ?
		ORDER BY seq
	`, s.lastSeen)
	if err != nil {
		return nil, fmt.Errorf("poll session state: %w", err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var key, value, writer string
		var seq int64
		if err := rows.Scan(&key, &value, &writer, &seq); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if seq > s.lastSeen {
			s.lastSeen = seq
		}
		if writer == s.writer {
			continue
		}
		out = append(out, Change{Key: key, Value: strings.TrimSpace(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}
