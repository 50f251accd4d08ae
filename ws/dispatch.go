package ws

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/akinalp/reson8/logging"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
	"github.com/akinalp/reson8/sfu"
)

// The Dispatcher depends on the narrow interfaces below rather than the
// concrete service structs, so the service layer can import this package
// for event names without a cycle, and tests can hand-write fakes.

// SessionService owns the JOIN/LEAVE lifecycle against the durable and
// presence stores.
type SessionService interface {
	// Join upserts the user, verifies its credential, ensures default role
	// membership, registers server presence, and returns the resolved
	// server id plus the initial channel tree.
	Join(ctx context.Context, req *models.JoinServerRequest) (serverID string, user *models.User, tree []*models.ChannelNode, err error)
	// Leave clears the user's server presence.
	Leave(ctx context.Context, serverID, userID string) error
	// JoinChannel validates the channel and atomically moves the user's
	// channel presence to it.
	JoinChannel(ctx context.Context, serverID, channelID, userID, nickname string) (*models.Channel, error)
	// LeaveChannel clears the user's channel presence only.
	LeaveChannel(ctx context.Context, serverID, userID string) error
}

// ChannelService is the channel CRUD surface; every mutation rebuilds
// and broadcasts the tree itself.
type ChannelService interface {
	Create(ctx context.Context, serverID string, req *models.CreateChannelRequest) (*models.Channel, error)
	Update(ctx context.Context, serverID, channelID string, req *models.UpdateChannelRequest) (*models.Channel, error)
	Move(ctx context.Context, serverID, channelID string, parentID *string, position *int) error
	Delete(ctx context.Context, serverID, channelID string) error
}

// MessageService is the persist-then-broadcast text message surface.
type MessageService interface {
	Send(ctx context.Context, serverID, channelID, userID, nickname, content string) (*models.Message, error)
	Fetch(ctx context.Context, channelID, before string, limit int) ([]models.Message, error)
}

// AdminService is the role administration surface.
type AdminService interface {
	ListUsers(ctx context.Context, serverID string) ([]models.UserWithRoles, error)
	ListRoles(ctx context.Context, serverID string) ([]models.Role, error)
	AssignRole(ctx context.Context, serverID, userID, roleID, action string) error
}

// PermissionChecker resolves and tests a session's effective mask.
type PermissionChecker interface {
	Require(ctx context.Context, userID, serverID string, flag models.Permission) (bool, error)
}

// VoiceCoordinator is the SFU coordinator's handshake surface, satisfied
// by *sfu.Coordinator.
type VoiceCoordinator interface {
	GetRouterCapabilities(channelID string) sfu.RouterCapabilities
	CreateTransport(ctx context.Context, channelID, userID, nickname string, direction sfu.Direction) (sfu.TransportDescriptor, error)
	ConnectTransport(ctx context.Context, channelID, userID, transportID string, dtlsParams webrtc.DTLSParameters) error
	Produce(channelID, userID, transportID string, kind webrtc.RTPCodecType, rtpParams webrtc.RTPReceiveParameters) (string, error)
	Consume(channelID, userID, producerID string, rtpCaps []webrtc.RTPCodecParameters) (sfu.ConsumerDescriptor, error)
	ResumeConsumer(channelID, userID, consumerID string) error
	CloseProducer(channelID, requesterID, producerID string) error
	ExistingProducers(channelID, userID string) []sfu.ProducerInfo
	CleanupSession(channelID, userID string)
}

// Ack is the single-fire acknowledgement sender for one inbound frame. A
// second Reply is a programming error: it is logged and dropped, never
// re-sent.
type Ack struct {
	c     *Client
	id    int64
	op    string
	fired atomic.Bool
}

// Reply sends the acknowledgement if the frame asked for one and none has
// been sent yet.
func (a *Ack) Reply(result pkg.Result) {
	if a.id == 0 {
		return
	}
	if !a.fired.CompareAndSwap(false, true) {
		logging.L().Error("duplicate acknowledgement dropped", zap.String("op", a.op), zap.Int64("ack", a.id))
		return
	}
	a.c.sendAck(a.id, result)
}

func (a *Ack) requested() bool { return a.id != 0 }

type handlerFunc func(ctx context.Context, c *Client, ev Event, ack *Ack) error

// Dispatcher is the event router: it maps every inbound op to its
// handler, enforces join-state and permission preconditions, and runs the
// ordered disconnect teardown.
type Dispatcher struct {
	hub      *Hub
	sessions SessionService
	channels ChannelService
	messages MessageService
	admin    AdminService
	voice    VoiceCoordinator
	perms    PermissionChecker

	handlers map[string]handlerFunc
}

// NewDispatcher wires the handler table.
func NewDispatcher(
	hub *Hub,
	sessions SessionService,
	channels ChannelService,
	messages MessageService,
	admin AdminService,
	voice VoiceCoordinator,
	perms PermissionChecker,
) *Dispatcher {
	d := &Dispatcher{
		hub:      hub,
		sessions: sessions,
		channels: channels,
		messages: messages,
		admin:    admin,
		voice:    voice,
		perms:    perms,
	}
	d.handlers = map[string]handlerFunc{
		OpUserJoinServer:   d.handleJoinServer,
		OpUserLeaveServer:  d.handleLeaveServer,
		OpUserJoinChannel:  d.handleJoinChannel,
		OpUserLeaveChannel: d.handleLeaveChannel,

		OpCreateChannel: d.handleCreateChannel,
		OpUpdateChannel: d.handleUpdateChannel,
		OpChannelMoved:  d.handleChannelMoved,
		OpDeleteChannel: d.handleDeleteChannel,

		OpSendMessage:   d.handleSendMessage,
		OpFetchMessages: d.handleFetchMessages,

		OpGetAllUsers: d.handleGetAllUsers,
		OpGetRoles:    d.handleGetRoles,
		OpAssignRole:  d.handleAssignRole,

		OpGetRouterCapabilities: d.handleGetRouterCapabilities,
		OpCreateWebRTCTransport: d.handleCreateTransport,
		OpConnectTransport:      d.handleConnectTransport,
		OpProduce:               d.handleProduce,
		OpConsume:               d.handleConsume,
		OpResumeConsumer:        d.handleResumeConsumer,
		OpCloseProducer:         d.handleCloseProducer,
	}
	return d
}

// Dispatch routes one inbound event. Errors and panics surface as a
// negative acknowledgement (or an ERROR event when no ack was requested)
// plus an error log entry — never to the transport.
func (d *Dispatcher) Dispatch(c *Client, ev Event) {
	ctx := context.Background()
	ack := &Ack{c: c, id: ev.Ack, op: ev.Op}

	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("handler panic",
				zap.String("op", ev.Op),
				zap.String("connectionId", c.connID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			d.fail(c, ev, ack, fmt.Errorf("%w: handler panic", pkg.ErrBackend))
		}
	}()

	handler, ok := d.handlers[ev.Op]
	if !ok {
		d.fail(c, ev, ack, fmt.Errorf("%w: unknown operation %q", pkg.ErrInvalidInput, ev.Op))
		return
	}

	if err := handler(ctx, c, ev, ack); err != nil {
		logging.L().Error("handler failed",
			zap.String("op", ev.Op),
			zap.String("connectionId", c.connID),
			zap.String("userId", c.UserID()),
			zap.Error(err))
		d.fail(c, ev, ack, err)
	}
}

func (d *Dispatcher) fail(c *Client, ev Event, ack *Ack, err error) {
	if ack.requested() {
		ack.Reply(pkg.Fail(err))
		return
	}
	c.sendEvent(OpError, ErrorData{Op: ev.Op, Message: pkg.ShortMessage(err)})
}

func requireJoined(c *Client) error {
	if c.ServerID() == "" {
		return fmt.Errorf("%w: join a server first", pkg.ErrNotAuthenticated)
	}
	return nil
}

func (d *Dispatcher) require(ctx context.Context, c *Client, flag models.Permission) error {
	ok, err := d.perms.Require(ctx, c.UserID(), c.ServerID(), flag)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}
	if !ok {
		return fmt.Errorf("%w: missing required permission", pkg.ErrPermissionDenied)
	}
	return nil
}

func decodeInto(ev Event, dst any) error {
	if err := decodePayload(ev.Data, dst); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrInvalidInput, err)
	}
	return nil
}

// ─── Session lifecycle ───

func (d *Dispatcher) handleJoinServer(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if c.ServerID() != "" {
		return fmt.Errorf("%w: session already joined a server", pkg.ErrPreconditionFailed)
	}

	var req models.JoinServerRequest
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrInvalidInput, err)
	}

	serverID, user, tree, err := d.sessions.Join(ctx, &req)
	if err != nil {
		return err
	}

	c.setIdentity(user.ID, req.Nickname, serverID)
	d.hub.BindUser(c, user.ID)
	d.hub.JoinRoom(c, ServerRoom(serverID))

	ack.Reply(pkg.OK().With("serverId", serverID).With("user", user))
	c.sendEvent(OpChannelTreeUpdate, TreeUpdateData{Channels: tree})
	d.hub.ToRoomExcept(ServerRoom(serverID), c, OpUserJoined, UserJoinedData{UserID: user.ID, Nickname: req.Nickname})
	return nil
}

func (d *Dispatcher) handleLeaveServer(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}

	serverID, userID := c.ServerID(), c.UserID()

	if err := d.leaveCurrentChannel(ctx, c); err != nil {
		logging.L().Error("channel teardown during leave failed", zap.String("userId", userID), zap.Error(err))
	}
	if err := d.sessions.Leave(ctx, serverID, userID); err != nil {
		return err
	}

	d.hub.LeaveRoom(c, ServerRoom(serverID))
	d.hub.UnbindUser(c)
	c.clearIdentity()
	d.hub.ToRoom(ServerRoom(serverID), OpUserLeft, UserLeftData{UserID: userID})

	ack.Reply(pkg.OK())
	return nil
}

func (d *Dispatcher) handleJoinChannel(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermConnect); err != nil {
		return err
	}

	var req struct {
		ChannelID string `json:"channelId"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if req.ChannelID == "" {
		return fmt.Errorf("%w: channelId is required", pkg.ErrInvalidInput)
	}

	serverID, userID, nickname := c.ServerID(), c.UserID(), c.Nickname()

	if err := d.leaveCurrentChannel(ctx, c); err != nil {
		return err
	}

	ch, err := d.sessions.JoinChannel(ctx, serverID, req.ChannelID, userID, nickname)
	if err != nil {
		return err
	}

	d.hub.JoinRoom(c, ChannelRoom(ch.ID))
	c.setChannel(ch.ID)
	d.hub.ToRoom(ServerRoom(serverID), OpPresenceUpdate, PresenceUpdateData{UserID: userID, Nickname: nickname, ChannelID: ch.ID})

	ack.Reply(pkg.OK().With("channelId", ch.ID))

	if ch.Type == models.ChannelTypeVoice {
		producers := d.voice.ExistingProducers(ch.ID, userID)
		if producers == nil {
			producers = []sfu.ProducerInfo{}
		}
		c.sendEvent(OpExistingProducers, ExistingProducersData{Producers: producers})
	}
	return nil
}

func (d *Dispatcher) handleLeaveChannel(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if c.ChannelID() == "" {
		return fmt.Errorf("%w: not in a channel", pkg.ErrPreconditionFailed)
	}
	if err := d.leaveCurrentChannel(ctx, c); err != nil {
		return err
	}
	ack.Reply(pkg.OK())
	return nil
}

// leaveCurrentChannel tears down the session's channel membership in
// order: SFU session first (broadcasting PRODUCER_CLOSED if a producer
// existed), then the room subscription, then presence, then the
// PRESENCE_UPDATE broadcast. No-op when not in a channel.
func (d *Dispatcher) leaveCurrentChannel(ctx context.Context, c *Client) error {
	channelID := c.ChannelID()
	if channelID == "" {
		return nil
	}
	serverID, userID, nickname := c.ServerID(), c.UserID(), c.Nickname()

	d.voice.CleanupSession(channelID, userID)
	d.hub.LeaveRoom(c, ChannelRoom(channelID))
	c.setChannel("")

	if err := d.sessions.LeaveChannel(ctx, serverID, userID); err != nil {
		return err
	}

	d.hub.ToRoom(ServerRoom(serverID), OpPresenceUpdate, PresenceUpdateData{UserID: userID, Nickname: nickname})
	return nil
}

// Disconnect runs the teardown for a dropped connection: (1) SFU session
// cleanup with its PRODUCER_CLOSED broadcast, (2) channel presence clear
// + PRESENCE_UPDATE, (3) server presence clear, (4) USER_LEFT. Errors are
// logged, never aborting later steps.
func (d *Dispatcher) Disconnect(c *Client) {
	ctx := context.Background()
	serverID, userID := c.ServerID(), c.UserID()
	if serverID == "" {
		return
	}

	if err := d.leaveCurrentChannel(ctx, c); err != nil {
		logging.L().Error("disconnect channel cleanup failed", zap.String("userId", userID), zap.Error(err))
	}
	if err := d.sessions.Leave(ctx, serverID, userID); err != nil {
		logging.L().Error("disconnect presence cleanup failed", zap.String("userId", userID), zap.Error(err))
	}
	d.hub.LeaveRoom(c, ServerRoom(serverID))
	d.hub.ToRoom(ServerRoom(serverID), OpUserLeft, UserLeftData{UserID: userID})
}

// ─── Channel CRUD ───

func (d *Dispatcher) handleCreateChannel(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermCreateChannel); err != nil {
		return err
	}

	var req models.CreateChannelRequest
	if err := decodeInto(ev, &req); err != nil {
		return err
	}

	ch, err := d.channels.Create(ctx, c.ServerID(), &req)
	if err != nil {
		return err
	}
	ack.Reply(pkg.OK().With("channel", ch))
	return nil
}

func (d *Dispatcher) handleUpdateChannel(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermManageChannels); err != nil {
		return err
	}

	var req struct {
		ChannelID string `json:"channelId"`
		models.UpdateChannelRequest
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if req.ChannelID == "" {
		return fmt.Errorf("%w: channelId is required", pkg.ErrInvalidInput)
	}

	ch, err := d.channels.Update(ctx, c.ServerID(), req.ChannelID, &req.UpdateChannelRequest)
	if err != nil {
		return err
	}
	ack.Reply(pkg.OK().With("channel", ch))
	return nil
}

func (d *Dispatcher) handleChannelMoved(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermManageChannels); err != nil {
		return err
	}

	var req struct {
		ChannelID string  `json:"channelId"`
		ParentID  *string `json:"parentId"`
		Position  *int    `json:"position"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if req.ChannelID == "" {
		return fmt.Errorf("%w: channelId is required", pkg.ErrInvalidInput)
	}

	if err := d.channels.Move(ctx, c.ServerID(), req.ChannelID, req.ParentID, req.Position); err != nil {
		return err
	}
	ack.Reply(pkg.OK())
	return nil
}

func (d *Dispatcher) handleDeleteChannel(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermManageChannels); err != nil {
		return err
	}

	var req struct {
		ChannelID string `json:"channelId"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if req.ChannelID == "" {
		return fmt.Errorf("%w: channelId is required", pkg.ErrInvalidInput)
	}

	if err := d.channels.Delete(ctx, c.ServerID(), req.ChannelID); err != nil {
		return err
	}
	ack.Reply(pkg.OK())
	return nil
}

// ─── Messages ───

func (d *Dispatcher) handleSendMessage(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermSendMessages); err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrInvalidInput, err)
	}

	msg, err := d.messages.Send(ctx, c.ServerID(), req.ChannelID, c.UserID(), c.Nickname(), req.Content)
	if err != nil {
		return err
	}
	ack.Reply(pkg.OK().With("message", msg))
	return nil
}

func (d *Dispatcher) handleFetchMessages(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}

	var req models.FetchMessagesRequest
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if req.ChannelID == "" {
		return fmt.Errorf("%w: channelId is required", pkg.ErrInvalidInput)
	}

	msgs, err := d.messages.Fetch(ctx, req.ChannelID, req.Before, req.NormalizedLimit())
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	ack.Reply(pkg.OK().With("messages", msgs))
	return nil
}

// ─── Administration ───

func (d *Dispatcher) handleGetAllUsers(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermManageRoles); err != nil {
		return err
	}

	users, err := d.admin.ListUsers(ctx, c.ServerID())
	if err != nil {
		return err
	}
	if users == nil {
		users = []models.UserWithRoles{}
	}
	ack.Reply(pkg.OK().With("users", users))
	return nil
}

func (d *Dispatcher) handleGetRoles(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermManageRoles); err != nil {
		return err
	}

	roles, err := d.admin.ListRoles(ctx, c.ServerID())
	if err != nil {
		return err
	}
	if roles == nil {
		roles = []models.Role{}
	}
	ack.Reply(pkg.OK().With("roles", roles))
	return nil
}

func (d *Dispatcher) handleAssignRole(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	if err := requireJoined(c); err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermManageRoles); err != nil {
		return err
	}

	var req struct {
		UserID string `json:"userId"`
		RoleID string `json:"roleId"`
		Action string `json:"action"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	if req.UserID == "" || req.RoleID == "" {
		return fmt.Errorf("%w: userId and roleId are required", pkg.ErrInvalidInput)
	}

	if err := d.admin.AssignRole(ctx, c.ServerID(), req.UserID, req.RoleID, req.Action); err != nil {
		return err
	}
	ack.Reply(pkg.OK())
	return nil
}

// ─── Voice handshake ───

// voiceChannel resolves the channel a voice event applies to: the
// session's current channel, which must match an explicit channelId in
// the payload when one is supplied.
func (d *Dispatcher) voiceChannel(c *Client, payloadChannelID string) (string, error) {
	if err := requireJoined(c); err != nil {
		return "", err
	}
	current := c.ChannelID()
	if current == "" {
		return "", fmt.Errorf("%w: not in a voice channel", pkg.ErrPreconditionFailed)
	}
	if payloadChannelID != "" && payloadChannelID != current {
		return "", fmt.Errorf("%w: event targets a channel the session is not in", pkg.ErrPreconditionFailed)
	}
	return current, nil
}

func (d *Dispatcher) handleGetRouterCapabilities(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	var req struct {
		ChannelID string `json:"channelId"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	channelID, err := d.voiceChannel(c, req.ChannelID)
	if err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermConnect); err != nil {
		return err
	}

	caps := d.voice.GetRouterCapabilities(channelID)
	ack.Reply(pkg.OK().With("routerRtpCapabilities", caps))
	return nil
}

func (d *Dispatcher) handleCreateTransport(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	var req struct {
		ChannelID string `json:"channelId"`
		Direction string `json:"direction"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	channelID, err := d.voiceChannel(c, req.ChannelID)
	if err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermConnect); err != nil {
		return err
	}

	direction := sfu.Direction(req.Direction)
	if direction != sfu.DirectionSend && direction != sfu.DirectionRecv {
		return fmt.Errorf("%w: direction must be send or recv", pkg.ErrInvalidInput)
	}

	desc, err := d.voice.CreateTransport(ctx, channelID, c.UserID(), c.Nickname(), direction)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	result := pkg.OK().
		With("id", desc.ID).
		With("iceParameters", desc.ICEParameters).
		With("iceCandidates", desc.ICECandidates).
		With("dtlsParameters", desc.DTLSParameters)
	if desc.TURN != nil {
		result = result.With("turn", desc.TURN)
	}
	ack.Reply(result)
	return nil
}

func (d *Dispatcher) handleConnectTransport(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	var req struct {
		TransportID    string                `json:"transportId"`
		DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	channelID, err := d.voiceChannel(c, "")
	if err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermConnect); err != nil {
		return err
	}
	if req.TransportID == "" {
		return fmt.Errorf("%w: transportId is required", pkg.ErrInvalidInput)
	}

	if err := d.voice.ConnectTransport(ctx, channelID, c.UserID(), req.TransportID, req.DTLSParameters); err != nil {
		return err
	}
	ack.Reply(pkg.OK())
	return nil
}

func (d *Dispatcher) handleProduce(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	var req struct {
		TransportID   string                      `json:"transportId"`
		Kind          string                      `json:"kind"`
		RTPParameters webrtc.RTPReceiveParameters `json:"rtpParameters"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	channelID, err := d.voiceChannel(c, "")
	if err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermSpeak); err != nil {
		return err
	}
	if req.Kind != "audio" {
		return fmt.Errorf("%w: only audio producers are supported", pkg.ErrInvalidInput)
	}

	producerID, err := d.voice.Produce(channelID, c.UserID(), req.TransportID, webrtc.RTPCodecTypeAudio, req.RTPParameters)
	if err != nil {
		return err
	}
	ack.Reply(pkg.OK().With("producerId", producerID))
	return nil
}

func (d *Dispatcher) handleConsume(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	var req struct {
		ProducerID      string `json:"producerId"`
		RTPCapabilities *struct {
			Codecs []webrtc.RTPCodecParameters `json:"codecs"`
		} `json:"rtpCapabilities"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	channelID, err := d.voiceChannel(c, "")
	if err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermConnect); err != nil {
		return err
	}
	if req.ProducerID == "" {
		return fmt.Errorf("%w: producerId is required", pkg.ErrInvalidInput)
	}

	var caps []webrtc.RTPCodecParameters
	if req.RTPCapabilities != nil {
		caps = req.RTPCapabilities.Codecs
	}

	desc, err := d.voice.Consume(channelID, c.UserID(), req.ProducerID, caps)
	if err != nil {
		return err
	}
	ack.Reply(pkg.OK().
		With("id", desc.ID).
		With("producerId", desc.ProducerID).
		With("kind", desc.Kind).
		With("rtpParameters", desc.RTPParameters))
	return nil
}

func (d *Dispatcher) handleResumeConsumer(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	var req struct {
		ConsumerID string `json:"consumerId"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	channelID, err := d.voiceChannel(c, "")
	if err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermConnect); err != nil {
		return err
	}
	if req.ConsumerID == "" {
		return fmt.Errorf("%w: consumerId is required", pkg.ErrInvalidInput)
	}

	if err := d.voice.ResumeConsumer(channelID, c.UserID(), req.ConsumerID); err != nil {
		return err
	}
	ack.Reply(pkg.OK())
	return nil
}

func (d *Dispatcher) handleCloseProducer(ctx context.Context, c *Client, ev Event, ack *Ack) error {
	var req struct {
		ProducerID string `json:"producerId"`
	}
	if err := decodeInto(ev, &req); err != nil {
		return err
	}
	channelID, err := d.voiceChannel(c, "")
	if err != nil {
		return err
	}
	if err := d.require(ctx, c, models.PermConnect); err != nil {
		return err
	}
	if req.ProducerID == "" {
		return fmt.Errorf("%w: producerId is required", pkg.ErrInvalidInput)
	}

	if err := d.voice.CloseProducer(channelID, c.UserID(), req.ProducerID); err != nil {
		return err
	}
	ack.Reply(pkg.OK())
	return nil
}
