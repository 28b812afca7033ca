package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

// User is an identity read from the user directory. The message service never mutates it.
type User struct {
	ID        string     `json:"id"`
	UserName  string     `json:"userName"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      UserRole   `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Message struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageSummary is the (id, text) pair returned by list queries.
type MessageSummary struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MessageListView is the read-only projection returned for one owner.
type MessageListView struct {
	Messages []MessageSummary `json:"messages"`
	Count    int              `json:"count"`
}
