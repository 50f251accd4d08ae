// Package durable is the signaling server's authoritative storage layer —
// servers, channels, users, roles, role assignments, and messages.
package durable

import (
	"context"

	"github.com/akinalp/reson8/models"
)

// ServerRepository abstracts the single authoritative server record. A
// deployment serves exactly one row; Get requires no id.
type ServerRepository interface {
	Get(ctx context.Context) (*models.Server, error)
	Update(ctx context.Context, server *models.Server) error
}
