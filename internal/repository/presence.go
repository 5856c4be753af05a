package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

// PresenceRepository tracks per-user live connection counts in redis so that
// every instance sees the same online set. Connect increments, disconnect
// decrements; a user is online while the counter is positive. The key TTL is
// refreshed on every increment so a crashed instance cannot leak a user
// online forever.
type PresenceRepository interface {
	// Connected increments the user's counter and reports whether this was
	// the user's first live connection anywhere.
	Connected(ctx context.Context, userID int64) (first bool, err error)
	// Disconnected decrements the counter and reports whether the user has
	// no live connections left anywhere.
	Disconnected(ctx context.Context, userID int64) (last bool, err error)
	IsOnline(ctx context.Context, userID int64) (bool, error)
	// OnlineAmong filters the given user set down to the online ones.
	OnlineAmong(ctx context.Context, userIDs []int64) ([]int64, error)
}

const presenceTTL = 24 * time.Hour

type presenceRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewPresenceRepository(redis *redis.Client, log logger.Logger) PresenceRepository {
	return &presenceRepository{redis: redis, log: log}
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

func (r *presenceRepository) Connected(ctx context.Context, userID int64) (bool, error) {
	key := presenceKey(userID)
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		r.log.Error("failed to increment presence", "error", err, "user", userID)
		return false, apperrors.Persistence(err)
	}
	r.redis.Expire(ctx, key, presenceTTL)
	return count == 1, nil
}

func (r *presenceRepository) Disconnected(ctx context.Context, userID int64) (bool, error) {
	key := presenceKey(userID)
	count, err := r.redis.Decr(ctx, key).Result()
	if err != nil {
		r.log.Error("failed to decrement presence", "error", err, "user", userID)
		return false, apperrors.Persistence(err)
	}
	if count <= 0 {
		// Delete rather than keep a zero so IsOnline stays a cheap EXISTS
		// and a double-decrement cannot wedge the counter negative.
		r.redis.Del(ctx, key)
		return true, nil
	}
	return false, nil
}

func (r *presenceRepository) IsOnline(ctx context.Context, userID int64) (bool, error) {
	count, err := r.redis.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		r.log.Error("failed to check presence", "error", err, "user", userID)
		return false, apperrors.Persistence(err)
	}
	return count > 0, nil
}

func (r *presenceRepository) OnlineAmong(ctx context.Context, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		r.log.Error("failed to bulk-check presence", "error", err)
		return nil, apperrors.Persistence(err)
	}

	var online []int64
	for i, v := range values {
		if v != nil {
			online = append(online, userIDs[i])
		}
	}
	return online, nil
}
