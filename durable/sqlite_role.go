package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/reson8/database"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
)

type sqliteRoleRepo struct {
	db database.TxQuerier
}

func NewSQLiteRoleRepo(db database.TxQuerier) RoleRepository {
	return &sqliteRoleRepo{db: db}
}

func (r *sqliteRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	query := `
		SELECT id, server_id, name, permissions, power_level, color, is_default, created_at
		FROM roles WHERE id = ?`

	role := &models.Role{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&role.ID, &role.ServerID, &role.Name, &role.Permissions, &role.PowerLevel,
		&role.Color, &role.IsDefault, &role.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by id: %w", err)
	}
	return role, nil
}

func (r *sqliteRoleRepo) GetAllByServer(ctx context.Context, serverID string) ([]models.Role, error) {
	query := `
		SELECT id, server_id, name, permissions, power_level, color, is_default, created_at
		FROM roles WHERE server_id = ? ORDER BY power_level DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by server: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(
			&role.ID, &role.ServerID, &role.Name, &role.Permissions, &role.PowerLevel,
			&role.Color, &role.IsDefault, &role.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}
	return roles, nil
}

func (r *sqliteRoleRepo) GetDefaultByServer(ctx context.Context, serverID string) (*models.Role, error) {
	query := `
		SELECT id, server_id, name, permissions, power_level, color, is_default, created_at
		FROM roles WHERE server_id = ? AND is_default = 1 LIMIT 1`

	role := &models.Role{}
	err := r.db.QueryRowContext(ctx, query, serverID).Scan(
		&role.ID, &role.ServerID, &role.Name, &role.Permissions, &role.PowerLevel,
		&role.Color, &role.IsDefault, &role.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default role: %w", err)
	}
	return role, nil
}

func (r *sqliteRoleRepo) GetByUserIDAndServer(ctx context.Context, userID, serverID string) ([]models.Role, error) {
	query := `
		SELECT r.id, r.server_id, r.name, r.permissions, r.power_level, r.color, r.is_default, r.created_at
		FROM roles r
		INNER JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ? AND r.server_id = ?
		ORDER BY r.power_level DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by user and server: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(
			&role.ID, &role.ServerID, &role.Name, &role.Permissions, &role.PowerLevel,
			&role.Color, &role.IsDefault, &role.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}
	return roles, nil
}

func (r *sqliteRoleRepo) Create(ctx context.Context, role *models.Role) error {
	query := `
		INSERT INTO roles (id, server_id, name, permissions, power_level, color, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	isDefault := 0
	if role.IsDefault {
		isDefault = 1
	}

	err := r.db.QueryRowContext(ctx, query,
		role.ID, role.ServerID, role.Name, role.Permissions, role.PowerLevel, role.Color, isDefault,
	).Scan(&role.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) AssignToUser(ctx context.Context, userID, roleID string) error {
	query := `INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, userID, roleID); err != nil {
		return fmt.Errorf("failed to assign role to user: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	query := `DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`
	if _, err := r.db.ExecContext(ctx, query, userID, roleID); err != nil {
		return fmt.Errorf("failed to remove role from user: %w", err)
	}
	return nil
}
