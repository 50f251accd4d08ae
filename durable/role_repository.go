package durable

import (
	"context"

	"github.com/akinalp/reson8/models"
)

// RoleRepository is the Durable Store's role and role-assignment access
// surface. There are no CREATE_ROLE/UPDATE_ROLE/DELETE_ROLE events — roles
// are provisioned by the seed template or by direct administration of the
// store; the only mutating operation reachable from the wire protocol is
// ASSIGN_ROLE.
type RoleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Role, error)
	// GetAllByServer returns every role on serverID, ordered by powerLevel
	// descending, for GET_ROLES.
	GetAllByServer(ctx context.Context, serverID string) ([]models.Role, error)
	// GetDefaultByServer returns the role every new member is bound to on
	// JOIN_SERVER.
	GetDefaultByServer(ctx context.Context, serverID string) (*models.Role, error)
	// GetByUserIDAndServer returns every role userID holds on serverID. The
	// Permission Evaluator ORs their permissions together.
	GetByUserIDAndServer(ctx context.Context, userID, serverID string) ([]models.Role, error)
	Create(ctx context.Context, role *models.Role) error

	// AssignToUser binds roleID to userID, idempotently.
	AssignToUser(ctx context.Context, userID, roleID string) error
	// RemoveFromUser unbinds roleID from userID, idempotently.
	RemoveFromUser(ctx context.Context, userID, roleID string) error
}
