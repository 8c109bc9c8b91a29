package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, display_name, pin_hash, pin_salt, is_active, permissions, branch_permissions, last_synced_at`

func (r *SQLiteRepository) Upsert(ctx context.Context, u *StoredUser) error {
	perms, err := encodeSet(u.Permissions)
	if err != nil {
		return err
	}
	branches, err := encodeSet(u.BranchPermissions)
	if err != nil {
		return err
	}

	query := `INSERT INTO users (id, display_name, pin_hash, pin_salt, is_active, permissions, branch_permissions, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name,
			pin_hash = excluded.pin_hash,
			pin_salt = excluded.pin_salt,
			is_active = excluded.is_active,
			permissions = excluded.permissions,
			branch_permissions = excluded.branch_permissions,
			last_synced_at = excluded.last_synced_at`

	_, err = r.db.ExecContext(ctx, query,
		u.ID, u.DisplayName, u.PinHash, u.PinSalt, u.IsActive, perms, branches, dbx.NullTime(u.LastSyncedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]StoredUser, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []StoredUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*StoredUser, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*StoredUser, error) {
	var (
		u        StoredUser
		perms    string
		branches string
		synced   sql.NullInt64
	)
	if err := s.Scan(&u.ID, &u.DisplayName, &u.PinHash, &u.PinSalt, &u.IsActive, &perms, &branches, &synced); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	var err error
	if u.Permissions, err = decodeSet(perms); err != nil {
		return nil, err
	}
	if u.BranchPermissions, err = decodeSet(branches); err != nil {
		return nil, err
	}
	u.LastSyncedAt = dbx.TimePtr(synced)
	return &u, nil
}

func encodeSet(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode set: %w", err)
	}
	return string(b), nil
}

func decodeSet(s string) ([]string, error) {
	var v []string
	if s == "" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("failed to decode set: %w", err)
	}
	return v, nil
}
