package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/89hikari/telegram-clone-backend/internal/config"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type Repositories struct {
	User      UserRepository
	UserCache UserCacheRepository
	Message   MessageRepository
	Group     GroupRepository
	Presence  PresenceRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, cfg *config.Config, log logger.Logger) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db, log),
		UserCache: NewUserCacheRepository(redis, cfg.Cache.UserTTL, log),
		Message:   NewMessageRepository(db, log),
		Group:     NewGroupRepository(db, log),
		Presence:  NewPresenceRepository(redis, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}
}
