package service

import (
	"github.com/89hikari/telegram-clone-backend/internal/config"
	"github.com/89hikari/telegram-clone-backend/internal/repository"
	"github.com/89hikari/telegram-clone-backend/pkg/jwt"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type Services struct {
	Auth      AuthService
	User      UserService
	Message   MessageService
	Group     GroupService
	Presence  PresenceService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	users := NewUserService(repos.User, repos.UserCache, log)

	return &Services{
		Auth:      NewAuthService(repos.User, tokens, log),
		User:      users,
		Message:   NewMessageService(repos.Message, repos.Group, repos.User, users, log),
		Group:     NewGroupService(repos.Group, repos.User, log),
		Presence:  NewPresenceService(repos.Presence, repos.Message, repos.Group, repos.User, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
	}
}
