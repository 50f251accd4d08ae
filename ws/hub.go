package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/akinalp/reson8/logging"
)

// Publisher is the fan-out surface the service layer (and the SFU
// Coordinator, via its own narrower Broadcaster cut of the same methods)
// uses to emit events without depending on the Hub's concrete type.
type Publisher interface {
	// ToServer delivers event/payload to every session subscribed to the
	// server's room.
	ToServer(serverID, event string, payload any)
	// ToChannelExcept delivers to every session in the channel's room
	// except the one bound to exceptUserID (empty string excepts no one).
	ToChannelExcept(channelID, exceptUserID, event string, payload any)
	// ToUser delivers to a single user's connection, if any.
	ToUser(userID, event string, payload any)
}

// ServerRoom and ChannelRoom name the two room kinds the broker knows.
func ServerRoom(serverID string) string   { return "server:" + serverID }
func ChannelRoom(channelID string) string { return "channel:" + channelID }

// Hub is the room broker: it owns every live connection and the room →
// subscriber mapping, and fans events out to rooms, single users, or
// rooms-minus-sender. Membership changes only through the join/leave
// calls the event router makes on behalf of a session.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Client]struct{}
	users map[string]map[*Client]struct{} // userID -> connections, bound at JOIN_SERVER
	rooms map[string]map[*Client]struct{} // room id -> subscribers

	register   chan *Client
	unregister chan *Client

	// seq stamps every outbound event so clients can detect gaps.
	seq atomic.Int64
}

// NewHub builds an empty Hub. Run must be started on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		conns:      make(map[*Client]struct{}),
		users:      make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the Hub's connect/disconnect loop, started as `go hub.Run()`.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[client] = struct{}{}
	logging.L().Debug("client connected", zap.String("connectionId", client.connID))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[client]; !ok {
		return
	}
	delete(h.conns, client)
	close(client.send)

	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.unbindLocked(client)
	logging.L().Debug("client disconnected", zap.String("connectionId", client.connID))
}

// BindUser associates a connection with the user id it authenticated as
// during JOIN_SERVER, enabling ToUser delivery.
func (h *Hub) BindUser(client *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[userID] = set
	}
	set[client] = struct{}{}
}

// UnbindUser drops the connection's user binding (LEAVE_SERVER).
func (h *Hub) UnbindUser(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(client)
}

func (h *Hub) unbindLocked(client *Client) {
	for userID, set := range h.users {
		if _, ok := set[client]; ok {
			delete(set, client)
			if len(set) == 0 {
				delete(h.users, userID)
			}
		}
	}
}

// JoinRoom subscribes the connection to a room.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
}

// LeaveRoom unsubscribes the connection from a room.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// ToRoom delivers event/payload to every subscriber of room.
func (h *Hub) ToRoom(room, event string, payload any) {
	h.emit(room, nil, "", event, payload)
}

// ToRoomExcept delivers to every subscriber of room except the given
// connection — the socket.to(room) shape, used so an actor does not
// receive its own join/leave notification.
func (h *Hub) ToRoomExcept(room string, except *Client, event string, payload any) {
	h.emit(room, except, "", event, payload)
}

// ToServer implements Publisher.
func (h *Hub) ToServer(serverID, event string, payload any) {
	h.emit(ServerRoom(serverID), nil, "", event, payload)
}

// ToChannelExcept implements Publisher (and the SFU's Broadcaster).
func (h *Hub) ToChannelExcept(channelID, exceptUserID, event string, payload any) {
	h.emit(ChannelRoom(channelID), nil, exceptUserID, event, payload)
}

// ToUser implements Publisher: delivery to every connection bound to
// userID (normally exactly one).
func (h *Hub) ToUser(userID, event string, payload any) {
	data, ok := h.marshal(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.users[userID] {
		h.deliver(client, data)
	}
}

func (h *Hub) emit(room string, except *Client, exceptUserID, event string, payload any) {
	data, ok := h.marshal(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		if exceptUserID != "" && client.UserID() == exceptUserID {
			continue
		}
		h.deliver(client, data)
	}
}

func (h *Hub) marshal(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(Event{Op: event, Data: payload, Seq: h.seq.Add(1)})
	if err != nil {
		logging.L().Error("failed to marshal outbound event", zap.String("op", event), zap.Error(err))
		return nil, false
	}
	return data, true
}

// deliver enqueues data on the client's send buffer. A full buffer means
// the client has stopped draining; it is kicked rather than allowed to
// stall every broadcast behind it.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		logging.L().Warn("send buffer full, dropping connection", zap.String("connectionId", client.connID))
		go func() { h.unregister <- client }()
	}
}

// sendTo delivers a pre-marshaled frame to one connection, skipping it if
// the connection has already been torn down.
func (h *Hub) sendTo(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.conns[client]; ok {
		h.deliver(client, data)
	}
}

// RoomMembers returns the user ids currently subscribed to a room.
func (h *Hub) RoomMembers(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for client := range h.rooms[room] {
		if id := client.UserID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Shutdown closes every live connection's send channel (graceful stop).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.conns {
		close(client.send)
	}
	h.conns = make(map[*Client]struct{})
	h.users = make(map[string]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	logging.L().Info("hub shut down, all connections closed")
}
