package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"messagecrud/pkg/domain"
	"messagecrud/pkg/store"
)

const defaultMaxTextLength = 4096

// Config holds runtime configuration for the message core.
type Config struct {
	Store         store.Store
	MaxTextLength int
}

// App runs message commands and queries against the store.
type App struct {
	store         store.Store
	maxTextLength int
	now           func() time.Time
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	maxLen := cfg.MaxTextLength
	if maxLen <= 0 {
		maxLen = defaultMaxTextLength
	}
	return &App{
		store:         cfg.Store,
		maxTextLength: maxLen,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateMessage stores a new message owned by the caller and returns its id.
func (a *App) CreateMessage(ctx context.Context, caller domain.User, text string) (string, error) {
	if err := a.checkText(text); err != nil {
		return "", err
	}
	now := a.now()
	msg := domain.Message{
		ID:        uuid.New().String(),
		OwnerID:   caller.ID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateMessage(ctx, msg); err != nil {
		return "", fmt.Errorf("%w: create message: %w", ErrStorage, err)
	}
	return msg.ID, nil
}

// UpdateMessage overwrites the text of a message the caller owns. Admins may update any message.
// Existence and ownership are checked before the text.
func (a *App) UpdateMessage(ctx context.Context, caller domain.User, id, text string) error {
	msg, ok, err := a.store.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: get message: %w", ErrStorage, err)
	}
	if !ok {
		return ErrNotFound
	}
	if msg.OwnerID != caller.ID && !caller.IsAdmin() {
		return ErrForbidden
	}
	if err := a.checkText(text); err != nil {
		return err
	}
	if msg.Text == text {
		return nil
	}
	updated, err := a.store.UpdateMessageText(ctx, id, text)
	if err != nil {
		return fmt.Errorf("%w: update message: %w", ErrStorage, err)
	}
	if !updated {
		// deleted between lookup and write
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes message id from ownerID's messages.
// Non-admin callers may only address their own messages.
func (a *App) DeleteMessage(ctx context.Context, caller domain.User, ownerID, id string) error {
	if ownerID != caller.ID && !caller.IsAdmin() {
		return ErrForbidden
	}
	deleted, err := a.store.DeleteMessage(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("%w: delete message: %w", ErrStorage, err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns every message of ownerID, oldest first.
func (a *App) ListMessages(ctx context.Context, caller domain.User, ownerID string) (domain.MessageListView, error) {
	if ownerID != caller.ID && !caller.IsAdmin() {
		return domain.MessageListView{}, ErrForbidden
	}
	msgs, err := a.store.ListMessagesByOwner(ctx, ownerID)
	if err != nil {
		return domain.MessageListView{}, fmt.Errorf("%w: list messages: %w", ErrStorage, err)
	}
	items := lo.Map(msgs, func(m domain.Message, _ int) domain.MessageSummary {
		return domain.MessageSummary{ID: m.ID, Text: m.Text}
	})
	return domain.MessageListView{Messages: items, Count: len(items)}, nil
}

func (a *App) checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrTextRequired
	}
	if utf8.RuneCountInString(text) > a.maxTextLength {
		return ErrTextTooLong
	}
	return nil
}
