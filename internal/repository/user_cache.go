package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

// UserCacheRepository is the cache-aside layer in front of user profile
// lookups. A miss or a redis failure is never an error for the caller; the
// read falls through to postgres. Invalidation happens before the
// corresponding write is acknowledged so a stale entry survives at most one
// write cycle.
type UserCacheRepository interface {
	GetByID(ctx context.Context, id int64) *domain.Profile
	SetByID(ctx context.Context, profile *domain.Profile)
	GetByLookup(ctx context.Context, emailOrName string) *domain.Profile
	SetByLookup(ctx context.Context, emailOrName string, profile *domain.Profile)
	Invalidate(ctx context.Context, id int64, name, email string)
}

type userCacheRepository struct {
	redis *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

func NewUserCacheRepository(redis *redis.Client, ttl time.Duration, log logger.Logger) UserCacheRepository {
	return &userCacheRepository{redis: redis, ttl: ttl, log: log}
}

func keyForID(id int64) string {
	return fmt.Sprintf("user:id:%d", id)
}

func keyForLookup(emailOrName string) string {
	return "user:lookup:" + strings.ToLower(emailOrName)
}

func (r *userCacheRepository) GetByID(ctx context.Context, id int64) *domain.Profile {
	return r.get(ctx, keyForID(id))
}

func (r *userCacheRepository) SetByID(ctx context.Context, profile *domain.Profile) {
	r.set(ctx, keyForID(profile.ID), profile)
}

func (r *userCacheRepository) GetByLookup(ctx context.Context, emailOrName string) *domain.Profile {
	return r.get(ctx, keyForLookup(emailOrName))
}

func (r *userCacheRepository) SetByLookup(ctx context.Context, emailOrName string, profile *domain.Profile) {
	r.set(ctx, keyForLookup(emailOrName), profile)
}

func (r *userCacheRepository) Invalidate(ctx context.Context, id int64, name, email string) {
	keys := []string{keyForID(id)}
	if name != "" {
		keys = append(keys, keyForLookup(name))
	}
	if email != "" {
		keys = append(keys, keyForLookup(email))
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		r.log.Debug("failed to invalidate user cache", "error", err, "id", id)
	}
}

func (r *userCacheRepository) get(ctx context.Context, key string) *domain.Profile {
	raw, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Debug("user cache read failed", "error", err, "key", key)
		}
		return nil
	}

	profile := &domain.Profile{}
	if err := json.Unmarshal(raw, profile); err != nil {
		r.log.Debug("user cache entry corrupted", "error", err, "key", key)
		return nil
	}
	return profile
}

func (r *userCacheRepository) set(ctx context.Context, key string, profile *domain.Profile) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.log.Debug("user cache write failed", "error", err, "key", key)
	}
}
