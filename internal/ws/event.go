package ws

import (
	"encoding/json"
	"time"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
)

// Envelope is the wire frame for both directions:
// {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server ops.
const (
	OpInitUser         = "initUser"
	OpSendMessage      = "sendMessage"
	OpSendGroupMessage = "sendGroupMessage"
	OpEditMessage      = "editMessage"
	OpEditGroupMessage = "editGroupMessage"
)

// Server -> client events.
const (
	EventNewMessage         = "newMessage"
	EventNewGroupMessage    = "newGroupMessage"
	EventMessageEdited      = "messageEdited"
	EventGroupMessageEdited = "groupMessageEdited"
	EventPeerOnline         = "peerOnline"
	EventPeerOffline        = "peerOffline"
	EventConnectedPeers     = "connectedPeers"
	EventMessageError       = "messageError"
	EventInitError          = "initError"
)

type InitUserPayload struct {
	Token string `json:"token"`
}

type SendMessagePayload struct {
	ReceiverID int64  `json:"receiverId"`
	Message    string `json:"message"`
}

type SendGroupMessagePayload struct {
	GroupID int64  `json:"groupId"`
	Message string `json:"message"`
}

type EditMessagePayload struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type EditGroupMessagePayload struct {
	ID      int64  `json:"id"`
	GroupID int64  `json:"groupId"`
	Message string `json:"message"`
}

// MessageEvent carries a direct message to a recipient connection. Self is
// true on every connection bound to the sender.
type MessageEvent struct {
	ID         int64      `json:"id"`
	SenderID   int64      `json:"senderId"`
	ReceiverID int64      `json:"receiverId"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
	Self       bool       `json:"self"`
}

type GroupMessageEvent struct {
	ID        int64      `json:"id"`
	GroupID   int64      `json:"groupId"`
	SenderID  int64      `json:"senderId"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Self      bool       `json:"self"`
}

type PresenceEvent struct {
	UserID int64 `json:"userId"`
}

type ConnectedPeersEvent struct {
	Peers []int64 `json:"peers"`
}

type ErrorEvent struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	ReceiverID int64  `json:"receiverId,omitempty"`
}

func directEvent(m *domain.Message, self bool) MessageEvent {
	return MessageEvent{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Message,
		CreatedAt:  m.CreatedAt,
		EditedAt:   m.EditedAt,
		Self:       self,
	}
}

func groupEvent(m *domain.GroupMessage, self bool) GroupMessageEvent {
	return GroupMessageEvent{
		ID:        m.ID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		Self:      self,
	}
}

// Encode builds the wire frame for an event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
