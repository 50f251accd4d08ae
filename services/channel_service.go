package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
	"github.com/akinalp/reson8/presence"
	"github.com/akinalp/reson8/ws"
)

// ChannelService is the channel CRUD surface. Every mutation concludes by
// rebuilding the server's channel tree and broadcasting
// CHANNEL_TREE_UPDATE to the full server room.
type ChannelService interface {
	Create(ctx context.Context, serverID string, req *models.CreateChannelRequest) (*models.Channel, error)
	Update(ctx context.Context, serverID, channelID string, req *models.UpdateChannelRequest) (*models.Channel, error)
	Move(ctx context.Context, serverID, channelID string, parentID *string, position *int) error
	Delete(ctx context.Context, serverID, channelID string) error
}

type channelService struct {
	channels durable.ChannelRepository
	messages durable.MessageRepository
	presence presence.Store
	hub      ws.Publisher
}

// NewChannelService wires the channel CRUD service.
func NewChannelService(
	channels durable.ChannelRepository,
	messages durable.MessageRepository,
	pres presence.Store,
	hub ws.Publisher,
) ChannelService {
	return &channelService{channels: channels, messages: messages, presence: pres, hub: hub}
}

func (s *channelService) Create(ctx context.Context, serverID string, req *models.CreateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrInvalidInput, err)
	}

	if req.ParentID != nil {
		if _, err := s.parentOnServer(ctx, serverID, *req.ParentID); err != nil {
			return nil, err
		}
	}

	maxPos, err := s.channels.GetMaxPosition(ctx, serverID, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	ch := &models.Channel{
		ServerID: serverID,
		Name:     req.Name,
		Type:     models.ChannelType(req.Type),
		ParentID: req.ParentID,
		Position: maxPos + 1,
		MaxUsers: req.MaxUsers,
	}
	if err := s.channels.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	s.hub.ToServer(serverID, ws.OpChannelCreated, ch)
	if err := s.broadcastTree(ctx, serverID); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *channelService) Update(ctx context.Context, serverID, channelID string, req *models.UpdateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrInvalidInput, err)
	}

	ch, err := s.channelOnServer(ctx, serverID, channelID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		ch.Name = *req.Name
	}
	if req.MaxUsers != nil {
		ch.MaxUsers = req.MaxUsers
	}
	if req.Position != nil {
		ch.Position = *req.Position
	}
	if req.ParentID != nil {
		if err := s.checkReparent(ctx, serverID, channelID, *req.ParentID); err != nil {
			return nil, err
		}
		ch.ParentID = req.ParentID
	}

	if err := s.channels.Update(ctx, ch); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	if err := s.broadcastTree(ctx, serverID); err != nil {
		return nil, err
	}
	return ch, nil
}

// Move reparents and/or repositions a channel — the CHANNEL_MOVED
// operation. A nil parentID moves the channel to the root level; a nil
// position appends it after its new siblings.
func (s *channelService) Move(ctx context.Context, serverID, channelID string, parentID *string, position *int) error {
	ch, err := s.channelOnServer(ctx, serverID, channelID)
	if err != nil {
		return err
	}

	if parentID != nil {
		if err := s.checkReparent(ctx, serverID, channelID, *parentID); err != nil {
			return err
		}
	}
	ch.ParentID = parentID

	if position != nil {
		ch.Position = *position
	} else {
		maxPos, err := s.channels.GetMaxPosition(ctx, serverID, parentID)
		if err != nil {
			return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
		}
		ch.Position = maxPos + 1
	}

	if err := s.channels.Update(ctx, ch); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	return s.broadcastTree(ctx, serverID)
}

// Delete removes a channel. Its messages go with it and its children are
// orphaned to the root level rather than deleted.
func (s *channelService) Delete(ctx context.Context, serverID, channelID string) error {
	if _, err := s.channelOnServer(ctx, serverID, channelID); err != nil {
		return err
	}

	if err := s.messages.DeleteByChannelID(ctx, channelID); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	if err := s.channels.ClearParent(ctx, channelID); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	if err := s.channels.Delete(ctx, channelID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: channel %s", pkg.ErrNotFound, channelID)
		}
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	if err := s.broadcastTree(ctx, serverID); err != nil {
		return err
	}
	s.hub.ToServer(serverID, ws.OpChannelDeleted, ws.ChannelDeletedData{ChannelID: channelID})
	return nil
}

func (s *channelService) channelOnServer(ctx context.Context, serverID, channelID string) (*models.Channel, error) {
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
	return ch, nil
}

func (s *channelService) parentOnServer(ctx context.Context, serverID, parentID string) (*models.Channel, error) {
	parent, err := s.channels.GetByID(ctx, parentID)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil, fmt.Errorf("%w: parent channel %s", pkg.ErrNotFound, parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	if parent.ServerID != serverID {
		return nil, fmt.Errorf("%w: parent channel %s", pkg.ErrNotFound, parentID)
	}
	return parent, nil
}

// checkReparent rejects a parent change that would make the parent graph
// cyclic: the new parent must exist on the server and must not be the
// channel itself or any of its descendants.
func (s *channelService) checkReparent(ctx context.Context, serverID, channelID, newParentID string) error {
	if _, err := s.parentOnServer(ctx, serverID, newParentID); err != nil {
		return err
	}

	cur := newParentID
	for depth := 0; cur != ""; depth++ {
		if cur == channelID {
			return fmt.Errorf("%w: move would create a cycle in the channel tree", pkg.ErrPreconditionFailed)
		}
		// The walk terminates at a root or a dangling parent; the depth
		// bound only guards against pre-existing corrupt rows.
		if depth > 1024 {
			return fmt.Errorf("%w: channel ancestry too deep", pkg.ErrPreconditionFailed)
		}
		node, err := s.channels.GetByID(ctx, cur)
		if errors.Is(err, pkg.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
		}
		if node.ParentID == nil {
			return nil
		}
		cur = *node.ParentID
	}
	return nil
}

func (s *channelService) broadcastTree(ctx context.Context, serverID string) error {
	forest, err := treeWithOccupants(ctx, s.channels, s.presence, serverID)
	if err != nil {
		return err
	}
	s.hub.ToServer(serverID, ws.OpChannelTreeUpdate, ws.TreeUpdateData{Channels: forest})
	return nil
}
