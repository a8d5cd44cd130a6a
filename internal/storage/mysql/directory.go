package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"glazing-backend/internal/storage"
)

// Directory tables are owned by the settings service; only SELECT is issued
// here.

func (s *Storage) FindPersonnel(ctx context.Context, id string) (*storage.Personnel, error) {
	const op = "storage.mysql.personnel.find"

	var p storage.Personnel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM personnel WHERE id = ?`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (s *Storage) GetRoleConfig(ctx context.Context, roleID string) (*storage.RoleConfig, error) {
	const op = "storage.mysql.job_roles.get"

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM job_roles WHERE id = ?`, roleID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg storage.RoleConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%s: corrupt role config %s: %w", op, roleID, err)
	}
	return &cfg, nil
}
