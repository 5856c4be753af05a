package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/internal/service"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/jwt"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type published struct {
	UserID int64
	Event  string
	Data   any
}

// recordingPublisher captures fan-out instead of going through the broker.
type recordingPublisher struct {
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, userID int64, event string, data any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{UserID: userID, Event: event, Data: data})
	return nil
}

func (p *recordingPublisher) sentTo(userID int64) []published {
	var out []published
	for _, e := range p.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

type fakeAuth struct {
	service.AuthService
	users map[string]int64
}

func (f *fakeAuth) ValidateToken(_ context.Context, token string) (*jwt.Claims, error) {
	userID, ok := f.users[token]
	if !ok {
		return nil, apperrors.Unauthenticated("invalid token")
	}
	return &jwt.Claims{UserID: userID}, nil
}

type fakeMessages struct {
	service.MessageService
	sendErr error
	nextID  int64
}

func (f *fakeMessages) Send(_ context.Context, senderID, receiverID int64, body string) (*domain.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	return &domain.Message{
		ID:         f.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    body,
		CreatedAt:  time.Now(),
	}, nil
}

func (f *fakeMessages) Edit(_ context.Context, senderID, messageID int64, body string) (*domain.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &domain.Message{
		ID:         messageID,
		SenderID:   senderID,
		ReceiverID: 2,
		Message:    body,
		CreatedAt:  time.Now(),
	}, nil
}

type fakeGroups struct {
	service.GroupService
	members map[int64][]int64
	sendErr error
	nextID  int64
}

func (f *fakeGroups) SendMessage(_ context.Context, groupID, senderID int64, body string) (*domain.GroupMessage, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	return &domain.GroupMessage{
		ID:        f.nextID,
		GroupID:   groupID,
		SenderID:  senderID,
		Message:   body,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeGroups) MemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	return f.members[groupID], nil
}

type fakePresence struct {
	service.PresenceService
	online map[int64]bool
	peers  map[int64][]int64
	// connection counts per user; drives first/last transitions
	counts map[int64]int
}

func newFakePresence() *fakePresence {
	return &fakePresence{
		online: make(map[int64]bool),
		peers:  make(map[int64][]int64),
		counts: make(map[int64]int),
	}
}

func (f *fakePresence) Connected(_ context.Context, userID int64) (bool, error) {
	f.counts[userID]++
	f.online[userID] = true
	return f.counts[userID] == 1, nil
}

func (f *fakePresence) Disconnected(_ context.Context, userID int64) (bool, error) {
	f.counts[userID]--
	if f.counts[userID] <= 0 {
		f.online[userID] = false
		return true, nil
	}
	return false, nil
}

func (f *fakePresence) IsOnline(_ context.Context, userID int64) (bool, error) {
	return f.online[userID], nil
}

func (f *fakePresence) OnlinePeers(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for _, peer := range f.peers[userID] {
		if f.online[peer] {
			out = append(out, peer)
		}
	}
	return out, nil
}

func (f *fakePresence) OnlineAmong(_ context.Context, userIDs []int64) ([]int64, error) {
	var out []int64
	for _, id := range userIDs {
		if f.online[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type gatewayFixture struct {
	gateway   *Gateway
	registry  *Registry
	publisher *recordingPublisher
	messages  *fakeMessages
	groups    *fakeGroups
	presence  *fakePresence
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	registry := NewRegistry()
	publisher := &recordingPublisher{}
	messages := &fakeMessages{}
	groups := &fakeGroups{members: make(map[int64][]int64)}
	presence := newFakePresence()
	auth := &fakeAuth{users: map[string]int64{
		"token-1": 1,
		"token-2": 2,
		"token-3": 3,
	}}

	gateway := NewGateway(registry, publisher, auth, messages, groups, presence, logger.New("error"))
	return &gatewayFixture{
		gateway:   gateway,
		registry:  registry,
		publisher: publisher,
		messages:  messages,
		groups:    groups,
		presence:  presence,
	}
}

func (f *gatewayFixture) connect(t *testing.T, connID, token string) *Client {
	t.Helper()
	c := NewClient(connID, nil)
	require.NoError(t, f.gateway.HandleConnect(c))
	frame, _ := json.Marshal(map[string]any{
		"event": OpInitUser,
		"data":  map[string]string{"token": token},
	})
	f.gateway.Dispatch(context.Background(), c, frame)
	return c
}

func dispatch(t *testing.T, g *Gateway, c *Client, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	g.Dispatch(context.Background(), c, frame)
}

// drainFrames decodes everything queued on the connection's send buffer.
func drainFrames(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case frame := <-c.send:
			var env Envelope
			if err := json.Unmarshal(frame, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func TestGatewayInitUser(t *testing.T) {
	t.Run("bad token gets initError and no binding", func(t *testing.T) {
		f := newGatewayFixture(t)
		c := NewClient("c1", nil)
		require.NoError(t, f.gateway.HandleConnect(c))

		dispatch(t, f.gateway, c, OpInitUser, InitUserPayload{Token: "wrong"})

		frames := drainFrames(c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventInitError, frames[0].Event)
		_, bound := f.registry.UserOf("c1")
		assert.False(t, bound)
		assert.Empty(t, f.publisher.events)
	})

	t.Run("first connection announces peerOnline to online peers", func(t *testing.T) {
		f := newGatewayFixture(t)
		f.presence.peers[1] = []int64{2, 3}
		f.presence.online[2] = true // 3 stays offline

		c := f.connect(t, "c1", "token-1")

		userID, bound := f.registry.UserOf("c1")
		require.True(t, bound)
		assert.Equal(t, int64(1), userID)

		online := f.publisher.sentTo(2)
		require.Len(t, online, 1)
		assert.Equal(t, EventPeerOnline, online[0].Event)
		assert.Empty(t, f.publisher.sentTo(3), "offline peer gets nothing")

		frames := drainFrames(c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventConnectedPeers, frames[0].Event)

		var snapshot ConnectedPeersEvent
		require.NoError(t, json.Unmarshal(frames[0].Data, &snapshot))
		assert.Equal(t, []int64{2}, snapshot.Peers)
	})

	t.Run("repeated handshake on one connection counts once", func(t *testing.T) {
		f := newGatewayFixture(t)
		f.presence.peers[1] = []int64{2}
		f.presence.online[2] = true

		c := f.connect(t, "c1", "token-1")
		drainFrames(c)

		dispatch(t, f.gateway, c, OpInitUser, InitUserPayload{Token: "token-1"})

		assert.Equal(t, 1, f.presence.counts[1], "presence counter is per connection, not per handshake")
		assert.Len(t, f.publisher.sentTo(2), 1, "no second peerOnline")

		// The repeat still gets a snapshot back.
		frames := drainFrames(c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventConnectedPeers, frames[0].Event)

		f.publisher.events = nil
		f.gateway.HandleDisconnect(context.Background(), c)

		assert.False(t, f.presence.online[1], "no live connections left")
		offline := f.publisher.sentTo(2)
		require.Len(t, offline, 1)
		assert.Equal(t, EventPeerOffline, offline[0].Event)
	})

	t.Run("second device stays silent", func(t *testing.T) {
		f := newGatewayFixture(t)
		f.presence.peers[1] = []int64{2}
		f.presence.online[2] = true

		f.connect(t, "phone", "token-1")
		require.Len(t, f.publisher.sentTo(2), 1)

		f.connect(t, "laptop", "token-1")
		assert.Len(t, f.publisher.sentTo(2), 1, "no second peerOnline for the same user")
	})
}

func TestGatewaySendMessage(t *testing.T) {
	t.Run("sender and online receiver both get the event, framed", func(t *testing.T) {
		f := newGatewayFixture(t)
		sender := f.connect(t, "c1", "token-1")
		f.connect(t, "c2", "token-2")
		drainFrames(sender)

		dispatch(t, f.gateway, sender, OpSendMessage, SendMessagePayload{ReceiverID: 2, Message: "hello"})

		senderEvents := f.publisher.sentTo(1)
		require.Len(t, senderEvents, 1)
		assert.Equal(t, EventNewMessage, senderEvents[0].Event)
		assert.True(t, senderEvents[0].Data.(MessageEvent).Self)

		receiverEvents := f.publisher.sentTo(2)
		require.Len(t, receiverEvents, 1)
		assert.Equal(t, EventNewMessage, receiverEvents[0].Event)
		assert.False(t, receiverEvents[0].Data.(MessageEvent).Self)
	})

	t.Run("offline receiver gets nothing", func(t *testing.T) {
		f := newGatewayFixture(t)
		sender := f.connect(t, "c1", "token-1")

		dispatch(t, f.gateway, sender, OpSendMessage, SendMessagePayload{ReceiverID: 2, Message: "hello"})

		assert.Len(t, f.publisher.sentTo(1), 1, "sender still sees the echo")
		assert.Empty(t, f.publisher.sentTo(2))
	})

	t.Run("persistence failure means zero delivery", func(t *testing.T) {
		f := newGatewayFixture(t)
		sender := f.connect(t, "c1", "token-1")
		drainFrames(sender)
		f.messages.sendErr = apperrors.Persistence(assert.AnError)

		dispatch(t, f.gateway, sender, OpSendMessage, SendMessagePayload{ReceiverID: 2, Message: "hello"})

		assert.Empty(t, f.publisher.events)

		frames := drainFrames(sender)
		require.Len(t, frames, 1)
		assert.Equal(t, EventMessageError, frames[0].Event)

		var errEvent ErrorEvent
		require.NoError(t, json.Unmarshal(frames[0].Data, &errEvent))
		assert.Equal(t, int64(2), errEvent.ReceiverID)
		assert.Equal(t, string(apperrors.CodeUnavailable), errEvent.Code)
	})

	t.Run("unbound connection is rejected", func(t *testing.T) {
		f := newGatewayFixture(t)
		c := NewClient("c1", nil)
		require.NoError(t, f.gateway.HandleConnect(c))

		dispatch(t, f.gateway, c, OpSendMessage, SendMessagePayload{ReceiverID: 2, Message: "hello"})

		assert.Empty(t, f.publisher.events)
		frames := drainFrames(c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventMessageError, frames[0].Event)
	})

	t.Run("self message is echoed once", func(t *testing.T) {
		f := newGatewayFixture(t)
		sender := f.connect(t, "c1", "token-1")

		dispatch(t, f.gateway, sender, OpSendMessage, SendMessagePayload{ReceiverID: 1, Message: "note to self"})

		events := f.publisher.sentTo(1)
		require.Len(t, events, 1)
		assert.True(t, events[0].Data.(MessageEvent).Self)
	})
}

func TestGatewaySendGroupMessage(t *testing.T) {
	f := newGatewayFixture(t)
	f.groups.members[10] = []int64{1, 2, 3}
	sender := f.connect(t, "c1", "token-1")
	f.connect(t, "c2", "token-2") // 3 never connects

	dispatch(t, f.gateway, sender, OpSendGroupMessage, SendGroupMessagePayload{GroupID: 10, Message: "hi all"})

	senderEvents := f.publisher.sentTo(1)
	require.Len(t, senderEvents, 1)
	assert.Equal(t, EventNewGroupMessage, senderEvents[0].Event)
	assert.True(t, senderEvents[0].Data.(GroupMessageEvent).Self)

	memberEvents := f.publisher.sentTo(2)
	require.Len(t, memberEvents, 1)
	assert.False(t, memberEvents[0].Data.(GroupMessageEvent).Self)

	assert.Empty(t, f.publisher.sentTo(3), "offline member gets nothing")
}

func TestGatewayDisconnect(t *testing.T) {
	t.Run("last device broadcasts peerOffline", func(t *testing.T) {
		f := newGatewayFixture(t)
		f.presence.peers[1] = []int64{2}
		f.presence.online[2] = true
		c := f.connect(t, "c1", "token-1")
		f.publisher.events = nil

		f.gateway.HandleDisconnect(context.Background(), c)

		events := f.publisher.sentTo(2)
		require.Len(t, events, 1)
		assert.Equal(t, EventPeerOffline, events[0].Event)
		assert.Equal(t, PresenceEvent{UserID: 1}, events[0].Data)
	})

	t.Run("remaining device suppresses peerOffline", func(t *testing.T) {
		f := newGatewayFixture(t)
		f.presence.peers[1] = []int64{2}
		f.presence.online[2] = true
		phone := f.connect(t, "phone", "token-1")
		f.connect(t, "laptop", "token-1")
		f.publisher.events = nil

		f.gateway.HandleDisconnect(context.Background(), phone)

		assert.Empty(t, f.publisher.events)
	})

	t.Run("never-bound connection disconnects silently", func(t *testing.T) {
		f := newGatewayFixture(t)
		c := NewClient("c1", nil)
		require.NoError(t, f.gateway.HandleConnect(c))

		f.gateway.HandleDisconnect(context.Background(), c)

		assert.Empty(t, f.publisher.events)
	})
}

func TestGatewayDispatchUnknownEvent(t *testing.T) {
	f := newGatewayFixture(t)
	c := f.connect(t, "c1", "token-1")
	drainFrames(c)

	f.gateway.Dispatch(context.Background(), c, []byte(`{"event":"selfDestruct","data":{}}`))

	frames := drainFrames(c)
	require.Len(t, frames, 1)
	assert.Equal(t, EventMessageError, frames[0].Event)
}
