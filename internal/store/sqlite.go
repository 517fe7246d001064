package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// SQLiteStore implements SecretStore and SettingsStore on a local sqlite
// database. Secrets and settings live in separate tables so a settings
// export never carries token material.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS secrets (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// OpenSQLite opens (and if needed initializes) the store at path. Use
// ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// A single connection keeps concurrent writers serialized in sqlite.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSecret(key string) (string, bool, error) {
	return s.get("secrets", key)
}

func (s *SQLiteStore) SetSecret(key, value string) error {
	return s.set("secrets", key, value)
}

func (s *SQLiteStore) DeleteSecret(key string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete secret %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	return s.get("settings", key)
}

func (s *SQLiteStore) Set(key, value string) error {
	return s.set("settings", key, value)
}

func (s *SQLiteStore) get(table, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, table), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s key %q: %w", table, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) set(table, key, value string) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, table),
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s key %q: %w", table, key, err)
	}
	return nil
}
