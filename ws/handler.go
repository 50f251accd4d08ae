package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/akinalp/reson8/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The deployment fronts a desktop shell, not a browser origin — origin
	// filtering is left to the CORS layer on the mux.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket connections and hands each
// one to the Hub and Dispatcher. Connections start unauthenticated; the
// session acquires its identity through USER_JOIN_SERVER.
type Handler struct {
	hub    *Hub
	router *Dispatcher
}

// NewHandler builds the WebSocket endpoint handler.
func NewHandler(hub *Hub, router *Dispatcher) *Handler {
	return &Handler{hub: hub, router: router}
}

// HandleConnection upgrades the request, registers the connection, and
// runs the read loop until disconnect. WritePump runs on its own
// goroutine; ReadPump blocks this one, which keeps the HTTP handler alive
// for the connection's lifetime.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h.hub,
		router: h.router,
		conn:   conn,
		connID: uuid.NewString(),
		send:   make(chan []byte, sendBufferSize),
	}

	h.hub.register <- client

	go client.WritePump()
	client.ReadPump()
}
