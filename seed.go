package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/akinalp/reson8/config"
	"github.com/akinalp/reson8/database"
	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/models"
)

// ensureServerRecord guarantees the single authoritative server row
// exists and returns its id. Every other entity references it, so this
// runs unconditionally at startup — the seed flag only governs the
// template content below.
func ensureServerRecord(ctx context.Context, db *database.DB, cfg *config.Config) (string, error) {
	var id string
	err := db.Conn.QueryRowContext(ctx, `SELECT id FROM server LIMIT 1`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read server record: %w", err)
	}

	id = uuid.NewString()
	_, err = db.Conn.ExecContext(ctx,
		`INSERT INTO server (id, name, address, max_clients) VALUES (?, ?, ?, ?)`,
		id, "Reson8", cfg.Server.Addr(), 64,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create server record: %w", err)
	}
	return id, nil
}

// seedTemplate provisions the opt-in starter layout: an Everyone default
// role, an Admin role, and a text + voice channel pair. The roles are
// created only when the server has no roles, and the channels only when it
// has no channels (each checked on its own), so restarting with the flag
// set never duplicates anything.
func seedTemplate(ctx context.Context, serverID string, roles durable.RoleRepository, channels durable.ChannelRepository) error {
	existingRoles, err := roles.GetAllByServer(ctx, serverID)
	if err != nil {
		return err
	}
	if len(existingRoles) == 0 {
		everyone := &models.Role{
			ID:          uuid.NewString(),
			ServerID:    serverID,
			Name:        "Everyone",
			Permissions: models.PermConnect | models.PermSpeak | models.PermSendMessages,
			PowerLevel:  0,
			IsDefault:   true,
		}
		if err := roles.Create(ctx, everyone); err != nil {
			return err
		}

		color := "#e74c3c"
		admin := &models.Role{
			ID:          uuid.NewString(),
			ServerID:    serverID,
			Name:        "Admin",
			Permissions: models.PermAdmin,
			PowerLevel:  100,
			Color:       &color,
		}
		if err := roles.Create(ctx, admin); err != nil {
			return err
		}
	}

	existingChannels, err := channels.GetByServerID(ctx, serverID)
	if err != nil {
		return err
	}
	if len(existingChannels) == 0 {
		general := &models.Channel{
			ServerID: serverID,
			Name:     "General",
			Type:     models.ChannelTypeText,
			Position: 0,
		}
		if err := channels.Create(ctx, general); err != nil {
			return err
		}

		lounge := &models.Channel{
			ServerID: serverID,
			Name:     "Lounge",
			Type:     models.ChannelTypeVoice,
			Position: 1,
		}
		if err := channels.Create(ctx, lounge); err != nil {
			return err
		}
	}
	return nil
}
