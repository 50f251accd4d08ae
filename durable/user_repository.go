package durable

import (
	"context"

	"github.com/akinalp/reson8/models"
)

// UserRepository is the Durable Store's user access surface. Users are
// upserted implicitly by JOIN_SERVER — there is no registration flow. The
// service layer calls GetByID first and falls back to Create on
// pkg.ErrNotFound, so the credential hash is only ever set once.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// WithRoleOnServer returns every user holding at least one role on
	// serverID, for GET_ALL_USERS.
	WithRoleOnServer(ctx context.Context, serverID string) ([]models.User, error)
}
