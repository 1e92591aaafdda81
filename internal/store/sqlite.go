// Package store keeps mnemo's settings and memory snapshots in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/mnemo/internal/credential"
)

type SQLiteStore struct {
	db     *sql.DB
	sealer *credential.Sealer
	now    func() time.Time
}

// NewSQLiteStore opens the database at dbPath. Secret settings are sealed
// with sealer; a nil sealer stores them in the clear.
func NewSQLiteStore(dbPath string, sealer *credential.Sealer) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		sealer: sealer,
		now:    time.Now,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			created_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS memories (
			snapshot TEXT,
			position INTEGER,
			id TEXT,
			content TEXT,
			user_id TEXT,
			created_at INTEGER,
			updated_at INTEGER,
			vector BLOB,
			PRIMARY KEY (snapshot, position),
			FOREIGN KEY(snapshot) REFERENCES snapshots(name)
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(key, value string) error {
	if credential.IsSecretKey(key) && s.sealer != nil {
		sealed, err := s.sealer.Seal(value)
		if err != nil {
			return fmt.Errorf("failed to seal %s: %w", key, err)
		}
		value = sealed
	}

	query := `INSERT INTO configuration (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := s.db.Exec(query, key, value, s.now().Unix())
	return err
}

// GetConfig returns the value of key, or "" when it is not set.
func (s *SQLiteStore) GetConfig(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM configuration WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return s.open(key, value)
}

func (s *SQLiteStore) ListConfig() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM configuration ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var (
			st      Setting
			updated int64
		)
		if err := rows.Scan(&st.Key, &st.Value, &updated); err != nil {
			return nil, err
		}
		if st.Value, err = s.open(st.Key, st.Value); err != nil {
			return nil, err
		}
		st.Secret = credential.IsSecretKey(st.Key)
		st.UpdatedAt = time.Unix(updated, 0)
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

// DeleteConfig removes key and reports whether it was set.
func (s *SQLiteStore) DeleteConfig(key string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM configuration WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) open(key, value string) (string, error) {
	if !credential.IsSealed(value) {
		return value, nil
	}
	if s.sealer == nil {
		return "", fmt.Errorf("setting %s is sealed but no key is configured", key)
	}
	plain, err := s.sealer.Open(value)
	if err != nil {
		return "", fmt.Errorf("failed to unseal %s: %w", key, err)
	}
	return plain, nil
}
