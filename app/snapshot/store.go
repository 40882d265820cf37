package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one stored snapshot of a feed's raw markup.
type Record struct {
	URL       string
	Host      string
	File      string
	SHA256    string
	Bytes     int
	FetchedAt time.Time
}

// Ledger remembers the last snapshot written per feed URL.
type Ledger interface {
	Last(ctx context.Context, url string) (*Record, error)
	Save(ctx context.Context, rec Record) error
}

var _ Ledger = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the sqlite ledger at path and
// brings its schema up to date.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// A single connection keeps sqlite writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, _, err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Last returns the most recent record for url, or nil when there is none.
func (s *Store) Last(ctx context.Context, url string) (*Record, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx, `
		SELECT url, host, file, sha256, bytes, fetched_at
		FROM snapshots
		WHERE url = ?
	`, url).Scan(&rec.URL, &rec.Host, &rec.File, &rec.SHA256, &rec.Bytes, &rec.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &rec, nil
}

func (s *Store) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (url, host, file, sha256, bytes, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			host = excluded.host,
			file = excluded.file,
			sha256 = excluded.sha256,
			bytes = excluded.bytes,
			fetched_at = excluded.fetched_at
	`, rec.URL, rec.Host, rec.File, rec.SHA256, rec.Bytes, rec.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// Count returns the number of feeds with a stored snapshot.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}
