// Package journal persists display pipeline events (dispatch faults,
// reinitializations, recoveries) to a local SQLite database so persistent
// hardware trouble can be diagnosed after the fact. The database is scratch
// state: deleting it loses nothing but history.
package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gregm123456/picker/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const defaultDBFileName = "journal.db"

// Event is one recorded pipeline occurrence.
type Event struct {
	ID      int64
	At      time.Time
	Kind    string
	Tag     string
	Detail  string
	Elapsed time.Duration
}

// Store is a SQLite-backed event journal. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	stmt *sql.Stmt
}

// ResolvePath returns the journal database path, honoring
// PICKER_JOURNAL_PATH and defaulting to the user cache directory. The
// parent directory is created if needed.
func ResolvePath() (string, error) {
	if path := config.String("JOURNAL_PATH", ""); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", errors.Wrap(err, "journal: create dir")
		}
		return path, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "journal: resolve cache dir")
	}
	dir := filepath.Join(cache, "picker")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "journal: create dir")
	}
	return filepath.Join(dir, defaultDBFileName), nil
}

// Open opens (and if needed creates) the journal database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "journal: open sqlite database")
	}
	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	const schema = `CREATE TABLE IF NOT EXISTS display_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		kind TEXT NOT NULL,
		tag TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		elapsed_ms INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "journal: create schema")
	}
	stmt, err := db.Prepare(
		`INSERT INTO display_events (at, kind, tag, detail, elapsed_ms) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "journal: prepare insert")
	}
	return &Store{db: db, stmt: stmt}, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "journal: execute %s failed", pragma)
		}
	}
	db.SetMaxOpenConns(1)
	return nil
}

// Record implements the pipeline's event sink. Journal failures are logged
// and swallowed; diagnostics must never fault the display path.
func (s *Store) Record(kind, tag, detail string, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.stmt.Exec(
		time.Now().UTC().Format(time.RFC3339Nano),
		kind, tag, detail,
		elapsed.Milliseconds(),
	)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("journal write failed")
	}
}

// Recent returns the newest events, most recent first.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT id, at, kind, tag, detail, elapsed_ms
		 FROM display_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "journal: query events")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev        Event
			at        string
			elapsedMS int64
		)
		if err := rows.Scan(&ev.ID, &at, &ev.Kind, &ev.Tag, &ev.Detail, &elapsedMS); err != nil {
			return nil, errors.Wrap(err, "journal: scan event")
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			ev.At = parsed
		}
		ev.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stmt != nil {
		s.stmt.Close()
	}
	return s.db.Close()
}
