package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
)

type sqliteChannelRepo struct {
	db *sql.DB
}

func NewSQLiteChannelRepo(db *sql.DB) ChannelRepository {
	return &sqliteChannelRepo{db: db}
}

func (r *sqliteChannelRepo) Create(ctx context.Context, ch *models.Channel) error {
	query := `
		INSERT INTO channels (id, server_id, name, type, parent_id, position, max_users)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		ch.ServerID, ch.Name, ch.Type, ch.ParentID, ch.Position, ch.MaxUsers,
	).Scan(&ch.ID, &ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	query := `
		SELECT id, server_id, name, type, parent_id, position, max_users, created_at
		FROM channels WHERE id = ?`

	ch := &models.Channel{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID, &ch.ServerID, &ch.Name, &ch.Type, &ch.ParentID, &ch.Position, &ch.MaxUsers, &ch.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by id: %w", err)
	}
	return ch, nil
}

func (r *sqliteChannelRepo) GetByServerID(ctx context.Context, serverID string) ([]models.Channel, error) {
	query := `
		SELECT id, server_id, name, type, parent_id, position, max_users, created_at
		FROM channels WHERE server_id = ? ORDER BY position ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(
			&ch.ID, &ch.ServerID, &ch.Name, &ch.Type, &ch.ParentID, &ch.Position, &ch.MaxUsers, &ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}
	return channels, nil
}

func (r *sqliteChannelRepo) Update(ctx context.Context, ch *models.Channel) error {
	query := `
		UPDATE channels SET name = ?, parent_id = ?, position = ?, max_users = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, ch.Name, ch.ParentID, ch.Position, ch.MaxUsers, ch.ID)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
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

func (r *sqliteChannelRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
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

func (r *sqliteChannelRepo) GetMaxPosition(ctx context.Context, serverID string, parentID *string) (int, error) {
	var query string
	var args []any
	if parentID == nil {
		query = `SELECT COALESCE(MAX(position), -1) FROM channels WHERE server_id = ? AND parent_id IS NULL`
		args = []any{serverID}
	} else {
		query = `SELECT COALESCE(MAX(position), -1) FROM channels WHERE server_id = ? AND parent_id = ?`
		args = []any{serverID, *parentID}
	}

	var maxPos int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&maxPos); err != nil {
		return 0, fmt.Errorf("failed to get max channel position: %w", err)
	}
	return maxPos, nil
}

func (r *sqliteChannelRepo) ClearParent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE channels SET parent_id = NULL WHERE parent_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to orphan children of channel %s: %w", id, err)
	}
	return nil
}
