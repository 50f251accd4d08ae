// Package ws is the signaling server's transport layer: the WebSocket
// endpoint, the per-connection Session, the room-scoped fan-out broker,
// and the event router that dispatches every inbound operation.
//
// Event flow:
//  1. A client frame arrives → ReadPump → Dispatcher.Dispatch
//  2. The handler checks the session's permissions, calls into the
//     services/SFU, and acknowledges the frame exactly once
//  3. Resulting broadcasts fan out through the Hub's server/channel rooms
//  4. Each subscriber's WritePump writes the event to its socket
package ws

import (
	"encoding/json"

	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/sfu"
)

// Event is the wire envelope in both directions.
//
// Op names the operation. Data carries the op-specific payload. Ack, when
// non-zero on an inbound frame, asks for exactly one acknowledgement frame
// (op "ACK", same ack id, result object {success, error?, ...}). Seq is an
// increasing counter stamped on outbound events so clients can detect a
// gap in the stream.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Ack  int64  `json:"ack,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// decodePayload re-marshals an event's decoded-as-any payload into the
// handler's typed request struct. Going through JSON again is the safe way
// to convert the map[string]any the envelope decode produced.
func decodePayload(data any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Client → Server operations.
const (
	OpUserJoinServer   = "USER_JOIN_SERVER"
	OpUserLeaveServer  = "USER_LEAVE_SERVER"
	OpUserJoinChannel  = "USER_JOIN_CHANNEL"
	OpUserLeaveChannel = "USER_LEAVE_CHANNEL"
	OpChannelMoved     = "CHANNEL_MOVED"
	OpCreateChannel    = "CREATE_CHANNEL"
	OpDeleteChannel    = "DELETE_CHANNEL"
	OpUpdateChannel    = "UPDATE_CHANNEL"
	OpSendMessage      = "SEND_MESSAGE"
	OpFetchMessages    = "FETCH_MESSAGES"
	OpGetAllUsers      = "GET_ALL_USERS"
	OpGetRoles         = "GET_ROLES"
	OpAssignRole       = "ASSIGN_ROLE"

	OpGetRouterCapabilities = "GET_ROUTER_CAPABILITIES"
	OpCreateWebRTCTransport = "CREATE_WEBRTC_TRANSPORT"
	OpConnectTransport      = "CONNECT_TRANSPORT"
	OpProduce               = "PRODUCE"
	OpConsume               = "CONSUME"
	OpResumeConsumer        = "RESUME_CONSUMER"
	OpCloseProducer         = "CLOSE_PRODUCER"
)

// Server → Client operations.
const (
	OpAck               = "ACK"
	OpUserJoined        = "USER_JOINED"
	OpUserLeft          = "USER_LEFT"
	OpChannelTreeUpdate = "CHANNEL_TREE_UPDATE"
	OpPresenceUpdate    = "PRESENCE_UPDATE"
	OpMessageReceived   = "MESSAGE_RECEIVED"
	OpChannelCreated    = "CHANNEL_CREATED"
	OpChannelDeleted    = "CHANNEL_DELETED"
	OpError             = "ERROR"
	OpNewProducer       = "NEW_PRODUCER"
	OpProducerClosed    = "PRODUCER_CLOSED"
	OpExistingProducers = "EXISTING_PRODUCERS"
)

// UserJoinedData is the USER_JOINED broadcast payload.
type UserJoinedData struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// UserLeftData is the USER_LEFT broadcast payload.
type UserLeftData struct {
	UserID string `json:"userId"`
}

// PresenceUpdateData is broadcast to the server room whenever a user's
// channel occupancy changes. An empty ChannelID means the user is no
// longer in any channel.
type PresenceUpdateData struct {
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	ChannelID string `json:"channelId"`
}

// ChannelDeletedData is the CHANNEL_DELETED broadcast payload.
type ChannelDeletedData struct {
	ChannelID string `json:"channelId"`
}

// ErrorData is the ERROR event payload, emitted to the originating session
// when a handler without an acknowledgement fails.
type ErrorData struct {
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
}

// TreeUpdateData is the CHANNEL_TREE_UPDATE payload: the server's full
// channel forest with occupants filled in.
type TreeUpdateData struct {
	Channels []*models.ChannelNode `json:"channels"`
}

// ExistingProducersData is pushed to a session joining a voice channel
// that already has producers, listing everyone else's.
type ExistingProducersData struct {
	Producers []sfu.ProducerInfo `json:"producers"`
}
