package ws

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

// Publisher delivers an event to every live connection of a user, on
// whichever instance holds the socket.
type Publisher interface {
	Publish(ctx context.Context, userID int64, event string, data any) error
}

const userChannelPrefix = "chat:user:"

// Hub bridges redis pub/sub and the local registry. Every instance
// publishes user-addressed events to chat:user:<id> and subscribes to the
// whole pattern; whichever instances hold connections for that user forward
// the frame locally. This keeps the registry per-instance while fan-out
// reaches users on any instance.
type Hub struct {
	registry *Registry
	redis    *redis.Client
	log      logger.Logger
}

func NewHub(registry *Registry, redis *redis.Client, log logger.Logger) *Hub {
	return &Hub{
		registry: registry,
		redis:    redis,
		log:      log,
	}
}

func userChannel(userID int64) string {
	return fmt.Sprintf("%s%d", userChannelPrefix, userID)
}

func (h *Hub) Publish(ctx context.Context, userID int64, event string, data any) error {
	frame, err := Encode(event, data)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to encode event", err)
	}
	if err := h.redis.Publish(ctx, userChannel(userID), frame).Err(); err != nil {
		h.log.Error("failed to publish event", "error", err, "event", event, "user", userID)
		return apperrors.Persistence(err)
	}
	return nil
}

// Run consumes the broker and forwards frames to local connections. Blocks
// until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, userChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.forward(msg)
		}
	}
}

func (h *Hub) forward(msg *redis.Message) {
	userID, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, userChannelPrefix), 10, 64)
	if err != nil {
		h.log.Warn("unparseable broker channel", "channel", msg.Channel)
		return
	}

	for _, c := range h.registry.ConnectionsFor(userID) {
		if !c.Enqueue([]byte(msg.Payload)) {
			h.log.Warn("dropping frame for slow connection", "connection", c.ID, "user", userID)
		}
	}
}
