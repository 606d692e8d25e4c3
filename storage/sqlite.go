package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db           *sql.DB
	maxBytes     int64
	queryTimeout time.Duration
}

var _ Store = (*sqliteStore)(nil)

// NewSQLite returns a Store backed by a SQLite database at dbPath.
// If dbPath is empty or ":memory:", an in-memory database is used.
// If maxBytes > 0, Save fails with ErrQuotaExceeded once total stored
// bytes would exceed it.
func NewSQLite(dbPath string, maxBytes int64, opts ...Option) (Store, error) {
	cfg := applyOptions(opts)
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite store: wal")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite store: schema")
	}

	return &sqliteStore{
		db:           db,
		maxBytes:     maxBytes,
		queryTimeout: cfg.queryTimeout,
	}, nil
}

func (s *sqliteStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.queryTimeout)
}

func (s *sqliteStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var value []byte
	err := s.db.QueryRowContext(qctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "sqlite store: load")
	}
	return value, true, nil
}

func (s *sqliteStore) Save(ctx context.Context, key string, value []byte) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if s.maxBytes > 0 {
		var current, prev int64
		if err := s.db.QueryRowContext(qctx,
			`SELECT COALESCE(SUM(LENGTH(value)), 0),
			        COALESCE((SELECT LENGTH(value) FROM blobs WHERE key = ?), 0)
			 FROM blobs`, key,
		).Scan(&current, &prev); err != nil {
			return errors.Wrap(err, "sqlite store: usage")
		}
		if current-prev+int64(len(value)) > s.maxBytes {
			return errors.Wrapf(ErrQuotaExceeded, "sqlite store at %d/%d bytes", current, s.maxBytes)
		}
	}
	_, err := s.db.ExecContext(qctx,
		`INSERT INTO blobs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		if strings.Contains(err.Error(), "database or disk is full") {
			return errors.Mark(errors.Wrap(err, "sqlite store: save"), ErrQuotaExceeded)
		}
		return errors.Wrap(err, "sqlite store: save")
	}
	return nil
}

func (s *sqliteStore) Remove(ctx context.Context, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(qctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return errors.Wrap(err, "sqlite store: remove")
	}
	return nil
}

func (s *sqliteStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(qctx,
		`SELECT key FROM blobs WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: list")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "sqlite store: list scan")
		}
		keys = append(keys, key)
	}
	return keys, errors.Wrap(rows.Err(), "sqlite store: list")
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
