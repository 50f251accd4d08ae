package durable

import (
	"context"

	"github.com/akinalp/reson8/models"
)

// ChannelRepository is the Durable Store's channel-row access surface. Tree
// assembly from these flat rows is the Channel Tree Builder's job, not the
// repository's.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	GetByServerID(ctx context.Context, serverID string) ([]models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Delete(ctx context.Context, id string) error
	// GetMaxPosition returns the highest position among the given parent's
	// direct siblings, or -1 if there are none. parentID is nil for
	// root-level siblings.
	GetMaxPosition(ctx context.Context, serverID string, parentID *string) (int, error)
	// ClearParent orphans every channel whose parentId is id, turning them
	// into roots. Used by DELETE_CHANNEL cascade handling.
	ClearParent(ctx context.Context, id string) error
}
