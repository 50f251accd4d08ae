package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
	"github.com/akinalp/reson8/ws"
)

// MessageService persists and broadcasts text messages and serves
// paginated history.
type MessageService interface {
	Send(ctx context.Context, serverID, channelID, userID, nickname, content string) (*models.Message, error)
	Fetch(ctx context.Context, channelID, before string, limit int) ([]models.Message, error)
}

// MessageBroadcast is the MESSAGE_RECEIVED payload: the persisted message
// plus the author's nickname so subscribers need no user lookup.
type MessageBroadcast struct {
	models.Message
	Nickname string `json:"nickname"`
}

type messageService struct {
	messages durable.MessageRepository
	channels durable.ChannelRepository
	hub      ws.Publisher
}

// NewMessageService wires the message service.
func NewMessageService(
	messages durable.MessageRepository,
	channels durable.ChannelRepository,
	hub ws.Publisher,
) MessageService {
	return &messageService{messages: messages, channels: channels, hub: hub}
}

// Send verifies the channel exists and accepts text, persists the
// message, then broadcasts MESSAGE_RECEIVED to the full server room — the
// whole server, not just the channel, because clients keep channel tabs
// open without being "in" the channel.
func (s *messageService) Send(ctx context.Context, serverID, channelID, userID, nickname, content string) (*models.Message, error) {
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
	if ch.Type != models.ChannelTypeText {
		return nil, fmt.Errorf("%w: channel does not accept text messages", pkg.ErrPreconditionFailed)
	}

	msg := &models.Message{
		ChannelID: channelID,
		UserID:    userID,
		Content:   content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	s.hub.ToServer(serverID, ws.OpMessageReceived, MessageBroadcast{Message: *msg, Nickname: nickname})
	return msg, nil
}

// Fetch returns up to limit messages older than the `before` cursor
// (exclusive; empty cursor = newest first page). The query reads newest
// first; the result is flipped to chronological ascending before it is
// returned.
func (s *messageService) Fetch(ctx context.Context, channelID, before string, limit int) ([]models.Message, error) {
	rows, err := s.messages.GetByChannelID(ctx, channelID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
