package store

import (
	"context"

	"messagecrud/pkg/domain"
)

// Store defines persistence operations for users and messages.
type Store interface {
	// users
	SaveUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByName(ctx context.Context, userName string) (domain.User, bool, error)

	// messages
	CreateMessage(ctx context.Context, msg domain.Message) error
	GetMessage(ctx context.Context, id string) (domain.Message, bool, error)
	// UpdateMessageText overwrites the text of one message. It reports false when no row matched.
	UpdateMessageText(ctx context.Context, id, text string) (bool, error)
	// DeleteMessage removes a message only when it belongs to ownerID.
	DeleteMessage(ctx context.Context, ownerID, id string) (bool, error)
	ListMessagesByOwner(ctx context.Context, ownerID string) ([]domain.Message, error)
}

// UserCache maps a token reference (user name or subject) to a user id.
// Role and status are never cached; callers re-read them from the Store.
type UserCache interface {
	GetUserID(ctx context.Context, key string) (string, bool, error)
	SetUserID(ctx context.Context, key, userID string) error
}
