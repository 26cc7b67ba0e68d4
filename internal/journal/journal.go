// Package journal keeps a local SQLite log of publish cycles. It is
// bookkeeping only; the naming record on the node has no history.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one successful publish.
type Entry struct {
	ID          string
	Root        string
	Name        string
	Unpinned    []string
	Warnings    []string
	PublishedAt time.Time
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	for _, stmt := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`
CREATE TABLE IF NOT EXISTS publishes (
	id TEXT PRIMARY KEY,
	root TEXT NOT NULL,
	name TEXT NOT NULL,
	unpinned TEXT NOT NULL,
	warnings TEXT NOT NULL,
	published_at TEXT NOT NULL
)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize journal: %w", err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a publish and returns the stored entry with its id and
// timestamp filled in.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PublishedAt.IsZero() {
		e.PublishedAt = s.now()
	}
	e.PublishedAt = e.PublishedAt.UTC()

	unpinned, err := encodeList(e.Unpinned)
	if err != nil {
		return Entry{}, fmt.Errorf("encode unpinned: %w", err)
	}
	warnings, err := encodeList(e.Warnings)
	if err != nil {
		return Entry{}, fmt.Errorf("encode warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO publishes (id, root, name, unpinned, warnings, published_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Root, e.Name, unpinned, warnings, e.PublishedAt.Format(timeLayout),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record publish: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, root, name, unpinned, warnings, published_at FROM publishes
		ORDER BY published_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list publishes: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publish rows: %w", err)
	}
	return out, nil
}

// Last returns the newest entry. found is false for an empty journal.
func (s *Store) Last(ctx context.Context) (Entry, bool, error) {
	entries, err := s.List(ctx, 1)
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[0], true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                  Entry
		unpinned, warnings string
		publishedAt        string
	)
	if err := row.Scan(&e.ID, &e.Root, &e.Name, &unpinned, &warnings, &publishedAt); err != nil {
		return Entry{}, fmt.Errorf("scan publish row: %w", err)
	}
	if err := json.Unmarshal([]byte(unpinned), &e.Unpinned); err != nil {
		return Entry{}, fmt.Errorf("decode unpinned for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(warnings), &e.Warnings); err != nil {
		return Entry{}, fmt.Errorf("decode warnings for %s: %w", e.ID, err)
	}
	ts, err := time.Parse(timeLayout, publishedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse published_at for %s: %w", e.ID, err)
	}
	e.PublishedAt = ts
	return e, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
