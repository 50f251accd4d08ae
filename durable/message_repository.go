package durable

import (
	"context"

	"github.com/akinalp/reson8/models"
)

// MessageRepository is the Durable Store's message access surface.
// GetByChannelID pages backward from the `before` timestamp (exclusive,
// ISO-8601; empty means start from the newest), newest first, at most
// limit rows. The service layer re-sorts ascending before returning.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByChannelID(ctx context.Context, channelID, before string, limit int) ([]models.Message, error)
	// DeleteByChannelID removes every message belonging to channelID, for
	// the DELETE_CHANNEL cascade.
	DeleteByChannelID(ctx context.Context, channelID string) error
}
