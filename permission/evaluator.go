// Package permission computes effective permission masks: the bitwise OR
// of every role bound to a user on a server, tested flag by flag.
package permission

import (
	"context"
	"fmt"

	"github.com/akinalp/reson8/models"
)

// RoleSource is the minimal surface the Evaluator needs from the Durable
// Store's role repository — an ISP cut so this package never imports
// durable's sqlite implementations.
type RoleSource interface {
	GetByUserIDAndServer(ctx context.Context, userID, serverID string) ([]models.Role, error)
}

// Evaluator computes and tests the effective permission mask for a
// (user, server) pair.
type Evaluator struct {
	roles RoleSource
}

// New builds an Evaluator backed by roles.
func New(roles RoleSource) *Evaluator {
	return &Evaluator{roles: roles}
}

// EffectiveMask is the bitwise OR of every role's permissions bound to
// userID on serverID.
func (e *Evaluator) EffectiveMask(ctx context.Context, userID, serverID string) (models.Permission, error) {
	roles, err := e.roles.GetByUserIDAndServer(ctx, userID, serverID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve roles for permission check: %w", err)
	}
	var mask models.Permission
	for _, r := range roles {
		mask |= r.Permissions
	}
	return mask, nil
}

// Require resolves userID's effective mask on serverID and reports
// whether it grants flag (ADMIN always short-circuits true).
func (e *Evaluator) Require(ctx context.Context, userID, serverID string, flag models.Permission) (bool, error) {
	mask, err := e.EffectiveMask(ctx, userID, serverID)
	if err != nil {
		return false, err
	}
	return mask.Has(flag), nil
}
