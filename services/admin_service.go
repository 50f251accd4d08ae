package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
)

// AdminService serves the role administration operations. The
// server does not stop a client from removing its own admin role — that
// courtesy is the client's job.
type AdminService interface {
	// ListUsers returns every user holding at least one role on the
	// server, each with its roles, sorted by nickname ascending.
	ListUsers(ctx context.Context, serverID string) ([]models.UserWithRoles, error)
	// ListRoles returns the server's roles sorted by powerLevel descending.
	ListRoles(ctx context.Context, serverID string) ([]models.Role, error)
	// AssignRole adds or removes a role binding, idempotently.
	AssignRole(ctx context.Context, serverID, userID, roleID, action string) error
}

type adminService struct {
	users durable.UserRepository
	roles durable.RoleRepository
}

// NewAdminService wires the admin service.
func NewAdminService(users durable.UserRepository, roles durable.RoleRepository) AdminService {
	return &adminService{users: users, roles: roles}
}

func (s *adminService) ListUsers(ctx context.Context, serverID string) ([]models.UserWithRoles, error) {
	users, err := s.users.WithRoleOnServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	out := make([]models.UserWithRoles, 0, len(users))
	for _, u := range users {
		roles, err := s.roles.GetByUserIDAndServer(ctx, u.ID, serverID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
		}
		if roles == nil {
			roles = []models.Role{}
		}
		out = append(out, models.UserWithRoles{User: u, Roles: roles})
	}
	return out, nil
}

func (s *adminService) ListRoles(ctx context.Context, serverID string) ([]models.Role, error) {
	roles, err := s.roles.GetAllByServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	return roles, nil
}

func (s *adminService) AssignRole(ctx context.Context, serverID, userID, roleID, action string) error {
	role, err := s.roles.GetByID(ctx, roleID)
	if errors.Is(err, pkg.ErrNotFound) {
		return fmt.Errorf("%w: role %s", pkg.ErrNotFound, roleID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	if role.ServerID != serverID {
		return fmt.Errorf("%w: role %s", pkg.ErrNotFound, roleID)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: user %s", pkg.ErrNotFound, userID)
		}
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	switch action {
	case "add":
		if err := s.roles.AssignToUser(ctx, userID, roleID); err != nil {
			return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
		}
	case "remove":
		if err := s.roles.RemoveFromUser(ctx, userID, roleID); err != nil {
			return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
		}
	default:
		return fmt.Errorf("%w: action must be add or remove", pkg.ErrInvalidInput)
	}
	return nil
}
