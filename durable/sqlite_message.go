package durable

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akinalp/reson8/models"
)

type sqliteMessageRepo struct {
	db *sql.DB
}

func NewSQLiteMessageRepo(db *sql.DB) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

func (r *sqliteMessageRepo) Create(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, channel_id, user_id, content)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		message.ChannelID, message.UserID, message.Content,
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByChannelID pages backward from the `before` timestamp (exclusive),
// newest first. Timestamps are stored ISO-8601, so the comparison is a
// plain string compare. An empty cursor starts from the newest message.
func (r *sqliteMessageRepo) GetByChannelID(ctx context.Context, channelID, before string, limit int) ([]models.Message, error) {
	var query string
	var args []any

	if before == "" {
		query = `
			SELECT id, channel_id, user_id, content, created_at
			FROM messages
			WHERE channel_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`
		args = []any{channelID, limit}
	} else {
		query = `
			SELECT id, channel_id, user_id, content, created_at
			FROM messages
			WHERE channel_id = ?
			  AND created_at < ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`
		args = []any{channelID, before, limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages by channel: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

func (r *sqliteMessageRepo) DeleteByChannelID(ctx context.Context, channelID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("failed to delete messages for channel %s: %w", channelID, err)
	}
	return nil
}
