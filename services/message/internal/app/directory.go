package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"messagecrud/internal/usertoken"
	"messagecrud/pkg/domain"
	"messagecrud/pkg/store"
)

// TokenVerifier validates a bearer token and returns the caller reference it carries.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (usertoken.Identity, error)
}

// Directory resolves access tokens to users of the identity directory.
type Directory struct {
	verifier TokenVerifier
	store    store.Store
	cache    store.UserCache
}

// NewDirectory builds a resolver. cache may be nil.
func NewDirectory(verifier TokenVerifier, st store.Store, cache store.UserCache) (*Directory, error) {
	if verifier == nil {
		return nil, fmt.Errorf("token verifier required")
	}
	if st == nil {
		return nil, fmt.Errorf("store required")
	}
	return &Directory{verifier: verifier, store: st, cache: cache}, nil
}

// Resolve verifies token and loads the caller. The user name claim is preferred;
// the subject is used as the user id when the token carries no name. Only the
// reference-to-id mapping is cached, so role and status always come from the store.
func (d *Directory) Resolve(ctx context.Context, token string) (domain.User, error) {
	identity, err := d.verifier.Verify(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	user, ok, err := d.lookup(ctx, identity)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: lookup user: %w", ErrStorage, err)
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, fmt.Errorf("%w: user disabled", ErrUnauthenticated)
	}
	return user, nil
}

func (d *Directory) lookup(ctx context.Context, identity usertoken.Identity) (domain.User, bool, error) {
	if identity.UserName == "" {
		return d.store.GetUserByID(ctx, identity.Subject)
	}
	key := "name:" + identity.UserName
	if id, ok := d.cachedID(ctx, key); ok {
		user, found, err := d.store.GetUserByID(ctx, id)
		if err != nil {
			return domain.User{}, false, err
		}
		// a rename or delete makes the cached mapping stale
		if found && user.UserName == identity.UserName {
			return user, true, nil
		}
	}
	user, found, err := d.store.GetUserByName(ctx, identity.UserName)
	if err != nil || !found {
		return user, found, err
	}
	d.rememberID(ctx, key, user.ID)
	return user, true, nil
}

func (d *Directory) cachedID(ctx context.Context, key string) (string, bool) {
	if d.cache == nil {
		return "", false
	}
	id, ok, err := d.cache.GetUserID(ctx, key)
	if err != nil {
		slog.Warn("identity cache read failed", "err", err)
		return "", false
	}
	return id, ok
}

func (d *Directory) rememberID(ctx context.Context, key, userID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.SetUserID(ctx, key, userID); err != nil {
		slog.Warn("identity cache write failed", "err", err)
	}
}

// SeedUsers upserts bootstrap users into the directory.
func SeedUsers(ctx context.Context, st store.Store, users []domain.User) error {
	now := time.Now().UTC()
	for _, u := range users {
		u.ID = strings.TrimSpace(u.ID)
		u.UserName = strings.TrimSpace(u.UserName)
		if u.Status == "" {
			u.Status = domain.StatusActive
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		if err := st.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.UserName, err)
		}
	}
	return nil
}
