package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/logging"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
	"github.com/akinalp/reson8/pkg/crypto"
	"github.com/akinalp/reson8/presence"
)

// SessionService owns the JOIN/LEAVE lifecycle: user upsert and
// credential verification, default role membership, and the presence
// transitions the event router broadcasts around.
type SessionService interface {
	Join(ctx context.Context, req *models.JoinServerRequest) (serverID string, user *models.User, tree []*models.ChannelNode, err error)
	Leave(ctx context.Context, serverID, userID string) error
	JoinChannel(ctx context.Context, serverID, channelID, userID, nickname string) (*models.Channel, error)
	LeaveChannel(ctx context.Context, serverID, userID string) error
	Tree(ctx context.Context, serverID string) ([]*models.ChannelNode, error)
}

type sessionService struct {
	server   durable.ServerRepository
	users    durable.UserRepository
	roles    durable.RoleRepository
	channels durable.ChannelRepository
	presence presence.Store

	// adminInstanceID, when non-empty, names the installation id that is
	// auto-assigned the admin role on join.
	adminInstanceID string
}

// NewSessionService wires the session lifecycle service.
func NewSessionService(
	server durable.ServerRepository,
	users durable.UserRepository,
	roles durable.RoleRepository,
	channels durable.ChannelRepository,
	pres presence.Store,
	adminInstanceID string,
) SessionService {
	return &sessionService{
		server:          server,
		users:           users,
		roles:           roles,
		channels:        channels,
		presence:        pres,
		adminInstanceID: adminInstanceID,
	}
}

// Join resolves the deployment's server record, upserts the user row
// (first join creates it with the hashed credential; reconnects verify
// the credential against the stored hash), ensures default role
// membership, registers server presence, and returns the initial tree.
func (s *sessionService) Join(ctx context.Context, req *models.JoinServerRequest) (string, *models.User, []*models.ChannelNode, error) {
	srv, err := s.server.Get(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	switch {
	case errors.Is(err, pkg.ErrNotFound):
		hash, hashErr := crypto.HashCredential(req.Credential)
		if hashErr != nil {
			return "", nil, nil, fmt.Errorf("%w: %v", pkg.ErrBackend, hashErr)
		}
		user = &models.User{
			ID:             req.UserID,
			Username:       req.Username,
			Nickname:       req.Nickname,
			CredentialHash: hash,
		}
		if createErr := s.users.Create(ctx, user); createErr != nil {
			return "", nil, nil, fmt.Errorf("%w: %v", pkg.ErrBackend, createErr)
		}
	case err != nil:
		return "", nil, nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	default:
		if !crypto.VerifyCredential(user.CredentialHash, req.Credential) {
			return "", nil, nil, fmt.Errorf("%w: credential mismatch for this installation id", pkg.ErrNotAuthenticated)
		}
		user.Nickname = req.Nickname
	}

	if err := s.ensureMembership(ctx, srv.ID, user.ID); err != nil {
		return "", nil, nil, err
	}

	if err := s.presence.JoinServer(ctx, srv.ID, user.ID, req.Nickname); err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	forest, err := s.Tree(ctx, srv.ID)
	if err != nil {
		return "", nil, nil, err
	}

	return srv.ID, user, forest, nil
}

// ensureMembership binds the user to the server's default role, and to
// the admin role when the installation id matches the configured admin
// instance. Both assignments are idempotent.
func (s *sessionService) ensureMembership(ctx context.Context, serverID, userID string) error {
	def, err := s.roles.GetDefaultByServer(ctx, serverID)
	switch {
	case errors.Is(err, pkg.ErrNotFound):
		logging.L().Warn("server has no default role; joining user gets no permissions", zap.String("serverId", serverID))
	case err != nil:
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	default:
		if err := s.roles.AssignToUser(ctx, userID, def.ID); err != nil {
			return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
		}
	}

	if s.adminInstanceID == "" || userID != s.adminInstanceID {
		return nil
	}

	all, err := s.roles.GetAllByServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	for _, role := range all {
		if role.Permissions&models.PermAdmin != 0 {
			if err := s.roles.AssignToUser(ctx, userID, role.ID); err != nil {
				return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
			}
			return nil
		}
	}
	logging.L().Warn("admin instance joined but server has no admin role", zap.String("serverId", serverID))
	return nil
}

func (s *sessionService) Leave(ctx context.Context, serverID, userID string) error {
	if err := s.presence.LeaveServer(ctx, serverID, userID); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	return nil
}

// JoinChannel validates the target channel and atomically moves the
// user's channel presence to it. A full channel (maxUsers reached by
// other occupants) rejects the join.
func (s *sessionService) JoinChannel(ctx context.Context, serverID, channelID, userID, nickname string) (*models.Channel, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil, fmt.Errorf("%w: channel %s", pkg.ErrNotFound, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	if ch.ServerID != serverID {
		return nil, fmt.Errorf("%w: channel %s", pkg.ErrNotFound, channelID)
	}

	if ch.MaxUsers != nil && *ch.MaxUsers > 0 {
		members, err := s.presence.ChannelMembers(ctx, channelID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
		}
		occupied := 0
		for _, m := range members {
			if m != userID {
				occupied++
			}
		}
		if occupied >= *ch.MaxUsers {
			return nil, fmt.Errorf("%w: channel is full", pkg.ErrPreconditionFailed)
		}
	}

	if err := s.presence.JoinChannel(ctx, serverID, channelID, userID, nickname); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	return ch, nil
}

func (s *sessionService) LeaveChannel(ctx context.Context, serverID, userID string) error {
	if err := s.presence.LeaveChannel(ctx, serverID, userID); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	return nil
}

// Tree returns the server's channel forest with occupants populated.
func (s *sessionService) Tree(ctx context.Context, serverID string) ([]*models.ChannelNode, error) {
	return treeWithOccupants(ctx, s.channels, s.presence, serverID)
}
