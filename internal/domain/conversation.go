package domain

import "time"

// ConversationKey identifies a logical conversation. For direct chats the
// two participant ids are canonicalized so that A→B and B→A rows collapse to
// the same key; group chats are keyed by group id alone.
type ConversationKey struct {
	Low     int64 `json:"low,omitempty"`
	High    int64 `json:"high,omitempty"`
	GroupID int64 `json:"groupId,omitempty"`
}

// DirectKey canonicalizes an unordered user pair to (min, max).
func DirectKey(a, b int64) ConversationKey {
	if a > b {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

func GroupKey(groupID int64) ConversationKey {
	return ConversationKey{GroupID: groupID}
}

func (k ConversationKey) IsGroup() bool { return k.GroupID != 0 }

// Counterpart returns the participant that is not the given user. Only
// meaningful for direct keys.
func (k ConversationKey) Counterpart(userID int64) int64 {
	if k.Low == userID {
		return k.High
	}
	return k.Low
}

// LastMessage is one row of the conversation list: the newest message of one
// conversation, annotated for the requesting user.
type LastMessage struct {
	Key        ConversationKey `json:"key"`
	MessageID  int64           `json:"id"`
	Message    string          `json:"message"`
	Date       time.Time       `json:"date"`
	PersonID   int64           `json:"personId,omitempty"`
	PersonName string          `json:"personName,omitempty"`
	HasAvatar  bool            `json:"hasAvatar,omitempty"`
	GroupID    int64           `json:"groupId,omitempty"`
	GroupName  string          `json:"groupName,omitempty"`
}
