package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/chatsync-go/internal/logger"
)

// DB is a sqlite file holding any number of scoped stores.
type DB struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the sqlite file at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps read-modify-write sequences from interleaving on the file.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
        scope TEXT NOT NULL,
        key TEXT NOT NULL,
        value TEXT NOT NULL,
        PRIMARY KEY (scope, key)
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	logger.L.Debug("sqlite kv store initialized", "path", path)
	return &DB{db: db}, nil
}

// Scope returns a Store that only sees keys written under scope.
func (d *DB) Scope(scope string) *SQLite {
	return &SQLite{db: d.db, scope: scope}
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQLite is a Store persisted in a sqlite table, bound to one scope.
type SQLite struct {
	db    *sql.DB
	scope string
}

func (s *SQLite) Get(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE scope = ? AND key = ?;`, s.scope, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select %s/%s: %w", s.scope, key, err)
	}
	return v, nil
}

func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv (scope, key, value) VALUES (?,?,?)
        ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value;`, s.scope, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", s.scope, key, err)
	}
	return nil
}

func (s *SQLite) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE scope = ? AND key = ?;`, s.scope, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.scope, key, err)
	}
	return nil
}
