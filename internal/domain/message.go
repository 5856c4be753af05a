package domain

import "time"

// Message is a direct message between two users. Identity is immutable once
// created; only the sender may change the body, which stamps EditedAt.
type Message struct {
	ID         int64      `json:"id"`
	SenderID   int64      `json:"senderId"`
	ReceiverID int64      `json:"receiverId"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
}

// GroupMessage is scoped to a group instead of a single peer.
type GroupMessage struct {
	ID        int64      `json:"id"`
	GroupID   int64      `json:"groupId"`
	SenderID  int64      `json:"senderId"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// DirectMessageView is a history row framed for the requesting user.
type DirectMessageView struct {
	ID         int64     `json:"id"`
	Message    string    `json:"message"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
	IsMe       bool      `json:"isMe"`
}

// GroupMessageView is a group history row framed for the requesting user.
type GroupMessageView struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"groupId"`
	SenderID  int64     `json:"senderId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	IsMe      bool      `json:"isMe"`
}
