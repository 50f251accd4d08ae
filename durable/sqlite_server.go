package durable

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
)

type sqliteServerRepo struct {
	db *sql.DB
}

func NewSQLiteServerRepo(db *sql.DB) ServerRepository {
	return &sqliteServerRepo{db: db}
}

func (r *sqliteServerRepo) Get(ctx context.Context) (*models.Server, error) {
	query := `SELECT id, name, address, max_clients, created_at FROM server LIMIT 1`

	server := &models.Server{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&server.ID, &server.Name, &server.Address, &server.MaxClients, &server.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return server, nil
}

func (r *sqliteServerRepo) Update(ctx context.Context, server *models.Server) error {
	query := `UPDATE server SET name = ?, address = ?, max_clients = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, server.Name, server.Address, server.MaxClients, server.ID)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
