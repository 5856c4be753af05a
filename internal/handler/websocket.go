package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/89hikari/telegram-clone-backend/internal/ws"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins once the web client domain is fixed
	},
}

type WebSocketHandler struct {
	gateway *ws.Gateway
	log     logger.Logger
}

func NewWebSocketHandler(gateway *ws.Gateway, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		log:     log,
	}
}

// Handle upgrades the request and parks the connection in the registry.
// The connection carries no identity until the client sends initUser.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := ws.NewClient(uuid.NewString(), conn)

	if err := h.gateway.HandleConnect(client); err != nil {
		h.log.Error("Failed to register connection", "error", err, "conn_id", client.ID)
		conn.Close()
		return
	}

	h.log.Debug("WebSocket connection established", "conn_id", client.ID)

	// The request context dies with the handler; pumps outlive it.
	go client.WritePump()
	go client.ReadPump(context.Background(), h.gateway)
}
