package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a string key-value store backed by a single SQLite table.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) quickroot.db inside dir.
func New(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return Open(filepath.Join(dir, "quickroot.db"))
}

// Open opens the database at dsn. Use ":memory:" for a throwaway store.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// every :memory: connection is a separate database
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) migrate() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS prefs (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// Get returns the value stored under key. ok is false when the key is absent.
func (d *DB) Get(key string) (value string, ok bool, err error) {
	err = d.conn.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (d *DB) Put(key, value string) error {
	_, err := d.conn.Exec(
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (d *DB) Delete(key string) error {
	_, err := d.conn.Exec(`DELETE FROM prefs WHERE key = ?`, key)
	return err
}
