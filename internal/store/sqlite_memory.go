package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mnemo/internal/vector"
)

// SaveSnapshot stores entries under name, replacing any snapshot of that name.
func (s *SQLiteStore) SaveSnapshot(name string, entries []vector.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memories WHERE snapshot = ?`, name); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO snapshots (name, created_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET created_at = excluded.created_at`, name, s.now().Unix()); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO memories
		(snapshot, position, id, content, user_id, created_at, updated_at, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		vecBuf := new(bytes.Buffer)
		if err := binary.Write(vecBuf, binary.LittleEndian, e.Embedding); err != nil {
			return fmt.Errorf("failed to encode vector: %w", err)
		}
		var updated sql.NullInt64
		if e.UpdatedAt != nil {
			updated = sql.NullInt64{Int64: e.UpdatedAt.UnixNano(), Valid: true}
		}
		if _, err := stmt.Exec(name, i, e.ID, e.Content, e.UserID, e.CreatedAt.UnixNano(), updated, vecBuf.Bytes()); err != nil {
			return fmt.Errorf("failed to save entry %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns the entries saved under name in their original order.
func (s *SQLiteStore) LoadSnapshot(name string) ([]vector.Entry, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE name = ?`, name).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("snapshot not found: %s", name)
	}

	rows, err := s.db.Query(`SELECT id, content, user_id, created_at, updated_at, vector
		FROM memories WHERE snapshot = ? ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []vector.Entry{}
	for rows.Next() {
		var (
			e       vector.Entry
			created int64
			updated sql.NullInt64
			vecBlob []byte
		)
		if err := rows.Scan(&e.ID, &e.Content, &e.UserID, &created, &updated, &vecBlob); err != nil {
			return nil, err
		}
		if len(vecBlob)%4 != 0 {
			return nil, fmt.Errorf("entry %s: corrupt vector blob", e.ID)
		}

		e.Embedding = make([]float32, len(vecBlob)/4)
		if err := binary.Read(bytes.NewReader(vecBlob), binary.LittleEndian, e.Embedding); err != nil {
			return nil, fmt.Errorf("entry %s: failed to decode vector: %w", e.ID, err)
		}
		e.Magnitude = vector.Magnitude(e.Embedding)
		e.CreatedAt = time.Unix(0, created)
		if updated.Valid {
			t := time.Unix(0, updated.Int64)
			e.UpdatedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListSnapshots returns snapshot names, newest first.
func (s *SQLiteStore) ListSnapshots() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM snapshots ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
