package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"glazing-backend/internal/storage"
)

// Each entity kind lives in its own table as a whole JSON document with a
// version counter. Every mutation replaces the document; the version CAS
// catches out-of-band writes.

func (s *Storage) getDoc(ctx context.Context, table, id string, out any) (int64, error) {
	op := "storage.mysql." + table + ".get"

	var raw []byte
	var version int64
	query := fmt.Sprintf(`SELECT doc, version FROM %s WHERE id = ?`, table)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return 0, fmt.Errorf("%s: corrupt document %s: %w", op, id, err)
	}
	return version, nil
}

func (s *Storage) insertDoc(ctx context.Context, table, id string, doc any) error {
	op := "storage.mysql." + table + ".insert"

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc, version) VALUES (?, ?, 1)`, table)
	if _, err := s.db.ExecContext(ctx, query, id, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) updateDoc(ctx context.Context, table, id string, doc any, expectedVersion int64) error {
	op := "storage.mysql." + table + ".update"

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := fmt.Sprintf(`UPDATE %s SET doc = ?, version = version + 1 WHERE id = ? AND version = ?`, table)
	res, err := s.db.ExecContext(ctx, query, raw, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		// Row gone or version moved underneath us.
		var exists int
		check := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, table)
		if err := s.db.QueryRowContext(ctx, check, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return storage.ErrVersionConflict
	}
	return nil
}

func listDocs[T any](ctx context.Context, s *Storage, table string) ([]T, []int64, error) {
	op := "storage.mysql." + table + ".list"

	query := fmt.Sprintf(`SELECT doc, version FROM %s ORDER BY updated_at DESC`, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var docs []T
	var versions []int64
	for rows.Next() {
		var raw []byte
		var version int64
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("%s: corrupt document: %w", op, err)
		}
		docs = append(docs, doc)
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, versions, nil
}
