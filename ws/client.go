package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akinalp/reson8/logging"
)

const (
	// writeWait bounds a single socket write.
	writeWait = 10 * time.Second

	// pingPeriod / pongWait implement liveness probing: a ping every ~10s,
	// and the connection is considered dead if no pong lands within ~5s of
	// the next ping being due.
	pingPeriod = 10 * time.Second
	pongWait   = pingPeriod + 5*time.Second

	maxMessageSize = 16384
	sendBufferSize = 256
)

// Client is one connected Session: the socket, its outbound buffer, and
// the connection-scoped identity state.
//
// The session fields (userID, nickname, serverID, channelID) are written
// only by the ReadPump goroutine — inbound events for one Session are
// processed strictly in arrival order, which is what serializes the voice
// handshake for free. The Hub's broadcast goroutines read userID
// concurrently, so access goes through the small state mutex.
type Client struct {
	hub    *Hub
	router *Dispatcher
	conn   *websocket.Conn
	connID string

	// send buffers outbound frames for WritePump.
	send chan []byte

	writeMu sync.Mutex // serializes conn writes (gorilla allows one writer)

	stateMu   sync.RWMutex
	userID    string
	nickname  string
	serverID  string
	channelID string
}

// UserID returns the id the session authenticated as, or "" before
// JOIN_SERVER.
func (c *Client) UserID() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.userID
}

// Nickname returns the session's display name.
func (c *Client) Nickname() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.nickname
}

// ServerID returns the joined server id, or "" before JOIN_SERVER.
func (c *Client) ServerID() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.serverID
}

// ChannelID returns the channel the session currently occupies, or "".
func (c *Client) ChannelID() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.channelID
}

func (c *Client) setIdentity(userID, nickname, serverID string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.userID = userID
	c.nickname = nickname
	c.serverID = serverID
}

func (c *Client) setChannel(channelID string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.channelID = channelID
}

func (c *Client) clearIdentity() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.userID = ""
	c.nickname = ""
	c.serverID = ""
	c.channelID = ""
}

// ReadPump reads inbound frames and dispatches them in order until the
// connection dies. It runs on the HTTP handler's goroutine and blocks
// until disconnect; the deferred cleanup runs the ordered teardown
// sequence before the Hub forgets the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.router.Disconnect(c)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.L().Debug("unexpected close", zap.String("connectionId", c.connID), zap.Error(err))
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			logging.L().Warn("invalid frame", zap.String("connectionId", c.connID), zap.Error(err))
			c.sendEvent(OpError, ErrorData{Message: "malformed event"})
			continue
		}

		// Synchronous dispatch keeps per-Session ordering: the next frame
		// is not read until this one's handler has returned.
		c.router.Dispatch(c, event)
	}
}

// WritePump drains the send buffer to the socket and keeps the liveness
// pings flowing. One per connection, started by the HTTP handler.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.writeMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// sendEvent pushes a single event to this connection only.
func (c *Client) sendEvent(op string, payload any) {
	data, err := json.Marshal(Event{Op: op, Data: payload, Seq: c.hub.seq.Add(1)})
	if err != nil {
		logging.L().Error("failed to marshal event", zap.String("op", op), zap.Error(err))
		return
	}
	c.hub.sendTo(c, data)
}

// sendAck pushes the acknowledgement frame for an inbound ack id.
func (c *Client) sendAck(ackID int64, result any) {
	data, err := json.Marshal(Event{Op: OpAck, Ack: ackID, Data: result})
	if err != nil {
		logging.L().Error("failed to marshal ack", zap.Error(err))
		return
	}
	c.hub.sendTo(c, data)
}
