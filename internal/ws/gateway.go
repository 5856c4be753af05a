package ws

import (
	"context"
	"encoding/json"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/internal/service"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

// Gateway dispatches inbound ops from connections and owns the
// persist-then-deliver sequence. Success and presence events travel through
// the publisher so they reach every instance; error frames and the
// connectedPeers snapshot are connection-scoped and written directly.
type Gateway struct {
	registry  *Registry
	publisher Publisher
	auth      service.AuthService
	messages  service.MessageService
	groups    service.GroupService
	presence  service.PresenceService
	log       logger.Logger
}

func NewGateway(
	registry *Registry,
	publisher Publisher,
	auth service.AuthService,
	messages service.MessageService,
	groups service.GroupService,
	presence service.PresenceService,
	log logger.Logger,
) *Gateway {
	return &Gateway{
		registry:  registry,
		publisher: publisher,
		auth:      auth,
		messages:  messages,
		groups:    groups,
		presence:  presence,
		log:       log,
	}
}

// HandleConnect registers a fresh, not-yet-authenticated connection.
func (g *Gateway) HandleConnect(c *Client) error {
	if err := g.registry.Register(c); err != nil {
		// Duplicate registration means broken bookkeeping; drop loudly.
		g.log.Error("connection registry invariant violated", "error", err, "connection", c.ID)
		return err
	}
	return nil
}

// HandleDisconnect removes the connection and, if its user went fully
// offline, notifies the peers that care.
func (g *Gateway) HandleDisconnect(ctx context.Context, c *Client) {
	userID, bound := g.registry.Unregister(c.ID)
	if !bound {
		return
	}

	last, err := g.presence.Disconnected(ctx, userID)
	if err != nil {
		g.log.Error("failed to record disconnect", "error", err, "user", userID)
		return
	}
	if !last {
		// Another device is still live; no peerOffline.
		return
	}

	peers, err := g.presence.OnlinePeers(ctx, userID)
	if err != nil {
		g.log.Error("failed to resolve peers on disconnect", "error", err, "user", userID)
		return
	}
	for _, peer := range peers {
		g.publish(ctx, peer, EventPeerOffline, PresenceEvent{UserID: userID})
	}
}

// Dispatch routes one inbound frame. Called serially from the connection's
// read pump.
func (g *Gateway) Dispatch(ctx context.Context, c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.sendError(c, EventMessageError, apperrors.InvalidArg("malformed frame"), 0)
		return
	}

	switch env.Event {
	case OpInitUser:
		g.handleInitUser(ctx, c, env.Data)
	case OpSendMessage:
		g.handleSendMessage(ctx, c, env.Data)
	case OpSendGroupMessage:
		g.handleSendGroupMessage(ctx, c, env.Data)
	case OpEditMessage:
		g.handleEditMessage(ctx, c, env.Data)
	case OpEditGroupMessage:
		g.handleEditGroupMessage(ctx, c, env.Data)
	default:
		g.sendError(c, EventMessageError, apperrors.InvalidArg("unknown event: "+env.Event), 0)
	}
}

func (g *Gateway) handleInitUser(ctx context.Context, c *Client, data json.RawMessage) {
	var payload InitUserPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		g.sendError(c, EventInitError, apperrors.InvalidArg("token is required"), 0)
		return
	}

	// Identity comes from the verified credential, never from a
	// client-supplied id.
	claims, err := g.auth.ValidateToken(ctx, payload.Token)
	if err != nil {
		g.sendError(c, EventInitError, err, 0)
		return
	}
	userID := claims.UserID

	fresh, err := g.registry.Bind(c.ID, userID)
	if err != nil {
		g.sendError(c, EventInitError, err, 0)
		return
	}

	// A repeated handshake on an already-bound connection must not bump
	// the presence counter: one connection, one count.
	first := false
	if fresh {
		first, err = g.presence.Connected(ctx, userID)
		if err != nil {
			g.sendError(c, EventInitError, err, 0)
			return
		}
	}

	onlinePeers, err := g.presence.OnlinePeers(ctx, userID)
	if err != nil {
		g.sendError(c, EventInitError, err, 0)
		return
	}

	if first {
		for _, peer := range onlinePeers {
			g.publish(ctx, peer, EventPeerOnline, PresenceEvent{UserID: userID})
		}
	}

	// Point-in-time snapshot for this connection only.
	g.sendToClient(c, EventConnectedPeers, ConnectedPeersEvent{Peers: onlinePeers})
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	senderID, ok := g.registry.UserOf(c.ID)
	if !ok {
		g.sendError(c, EventMessageError, apperrors.Unauthenticated("connection has no bound identity"), 0)
		return
	}

	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.sendError(c, EventMessageError, apperrors.InvalidArg("malformed payload"), 0)
		return
	}

	// Persist before any delivery; a failed insert means zero events.
	message, err := g.messages.Send(ctx, senderID, payload.ReceiverID, payload.Message)
	if err != nil {
		g.sendError(c, EventMessageError, err, payload.ReceiverID)
		return
	}

	g.fanOutDirect(ctx, EventNewMessage, message)
}

func (g *Gateway) handleEditMessage(ctx context.Context, c *Client, data json.RawMessage) {
	senderID, ok := g.registry.UserOf(c.ID)
	if !ok {
		g.sendError(c, EventMessageError, apperrors.Unauthenticated("connection has no bound identity"), 0)
		return
	}

	var payload EditMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.sendError(c, EventMessageError, apperrors.InvalidArg("malformed payload"), 0)
		return
	}

	message, err := g.messages.Edit(ctx, senderID, payload.ID, payload.Message)
	if err != nil {
		g.sendError(c, EventMessageError, err, 0)
		return
	}

	g.fanOutDirect(ctx, EventMessageEdited, message)
}

func (g *Gateway) handleSendGroupMessage(ctx context.Context, c *Client, data json.RawMessage) {
	senderID, ok := g.registry.UserOf(c.ID)
	if !ok {
		g.sendError(c, EventMessageError, apperrors.Unauthenticated("connection has no bound identity"), 0)
		return
	}

	var payload SendGroupMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.sendError(c, EventMessageError, apperrors.InvalidArg("malformed payload"), 0)
		return
	}

	message, err := g.groups.SendMessage(ctx, payload.GroupID, senderID, payload.Message)
	if err != nil {
		g.sendError(c, EventMessageError, err, 0)
		return
	}

	g.fanOutGroup(ctx, EventNewGroupMessage, message)
}

func (g *Gateway) handleEditGroupMessage(ctx context.Context, c *Client, data json.RawMessage) {
	senderID, ok := g.registry.UserOf(c.ID)
	if !ok {
		g.sendError(c, EventMessageError, apperrors.Unauthenticated("connection has no bound identity"), 0)
		return
	}

	var payload EditGroupMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.sendError(c, EventMessageError, apperrors.InvalidArg("malformed payload"), 0)
		return
	}

	message, err := g.groups.EditMessage(ctx, senderID, payload.ID, payload.Message)
	if err != nil {
		g.sendError(c, EventMessageError, err, 0)
		return
	}

	g.fanOutGroup(ctx, EventGroupMessageEdited, message)
}

// fanOutDirect delivers a direct message (or edit) to every device of the
// sender with self=true and to the receiver with self=false, if online.
// Offline receivers get nothing now and recover it via history.
func (g *Gateway) fanOutDirect(ctx context.Context, event string, message *domain.Message) {
	g.publish(ctx, message.SenderID, event, directEvent(message, true))

	if message.ReceiverID == message.SenderID {
		return
	}
	online, err := g.presence.IsOnline(ctx, message.ReceiverID)
	if err != nil {
		g.log.Error("failed to check receiver presence", "error", err, "user", message.ReceiverID)
		return
	}
	if online {
		g.publish(ctx, message.ReceiverID, event, directEvent(message, false))
	}
}

// fanOutGroup re-resolves current membership, intersects it with the online
// set and delivers to every online member, self-tagged for the sender's own
// devices. Membership is never cached from the original send.
func (g *Gateway) fanOutGroup(ctx context.Context, event string, message *domain.GroupMessage) {
	members, err := g.groups.MemberIDs(ctx, message.GroupID)
	if err != nil {
		g.log.Error("failed to resolve group members", "error", err, "group", message.GroupID)
		return
	}

	online, err := g.presence.OnlineAmong(ctx, members)
	if err != nil {
		g.log.Error("failed to resolve online members", "error", err, "group", message.GroupID)
		return
	}

	for _, member := range online {
		g.publish(ctx, member, event, groupEvent(message, member == message.SenderID))
	}
}

func (g *Gateway) publish(ctx context.Context, userID int64, event string, data any) {
	if err := g.publisher.Publish(ctx, userID, event, data); err != nil {
		// Partial delivery is acceptable; the message is already persisted
		// and recoverable via history.
		g.log.Warn("failed to publish event", "error", err, "event", event, "user", userID)
	}
}

// sendToClient writes a connection-scoped frame directly, bypassing the
// broker.
func (g *Gateway) sendToClient(c *Client, event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		g.log.Error("failed to encode frame", "error", err, "event", event)
		return
	}
	if !c.Enqueue(frame) {
		g.log.Warn("dropping frame for slow connection", "connection", c.ID, "event", event)
	}
}

// sendError reports a failure to the originating connection only. Senders
// always hear back: either their self=true copy or an explicit error.
func (g *Gateway) sendError(c *Client, event string, err error, receiverID int64) {
	g.sendToClient(c, event, ErrorEvent{
		Error:      err.Error(),
		Code:       string(apperrors.CodeOf(err)),
		ReceiverID: receiverID,
	})
}
