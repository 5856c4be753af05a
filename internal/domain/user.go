package domain

import "time"

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Gender       string     `json:"gender,omitempty"`
	HasAvatar    bool       `json:"hasAvatar"`
	LastSeenAt   *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Profile is the public projection served to other users and cached in redis.
type Profile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	HasAvatar bool   `json:"hasAvatar"`
}

func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		HasAvatar: u.HasAvatar,
	}
}
