package domain

import "time"

const (
	GroupRoleAdmin  = "admin"
	GroupRoleMember = "member"
)

type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type GroupMember struct {
	GroupID  int64     `json:"groupId"`
	UserID   int64     `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}
