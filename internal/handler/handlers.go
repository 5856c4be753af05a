package handler

import (
	"github.com/89hikari/telegram-clone-backend/internal/service"
	"github.com/89hikari/telegram-clone-backend/internal/ws"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	User      *UserHandler
	Message   *MessageHandler
	Group     *GroupHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, gateway *ws.Gateway, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(),
		Auth:      NewAuthHandler(services.Auth, log),
		User:      NewUserHandler(services.User, log),
		Message:   NewMessageHandler(services.Message, log),
		Group:     NewGroupHandler(services.Group, log),
		WebSocket: NewWebSocketHandler(gateway, log),
	}
}
