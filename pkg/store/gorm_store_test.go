package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"messagecrud/pkg/domain"
)

// newPostgresStore opens the database named by DATABASE_URL; tests skip without one.
func newPostgresStore(t *testing.T) *GormStore {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests skipped in -short mode")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := NewGormStore(dsn)
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func savePostgresUser(t *testing.T, s *GormStore) domain.User {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	u := domain.User{ID: id, UserName: "user-" + id, Role: domain.RoleUser, Status: domain.StatusActive, CreatedAt: now, UpdatedAt: now}
	if err := s.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

func TestGormStoreOrderingAndOwnerScopedDelete(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	owner := savePostgresUser(t, s)
	other := savePostgresUser(t, s)

	base := time.Now().UTC().Truncate(time.Millisecond)
	// two rows share a timestamp so the id tiebreak is exercised
	tied := []string{uuid.NewString(), uuid.NewString()}
	if tied[0] > tied[1] {
		tied[0], tied[1] = tied[1], tied[0]
	}
	first := uuid.NewString()
	msgs := []domain.Message{
		{ID: tied[1], OwnerID: owner.ID, Text: "c", CreatedAt: base.Add(time.Second), UpdatedAt: base},
		{ID: first, OwnerID: owner.ID, Text: "a", CreatedAt: base, UpdatedAt: base},
		{ID: tied[0], OwnerID: owner.ID, Text: "b", CreatedAt: base.Add(time.Second), UpdatedAt: base},
	}
	for _, m := range msgs {
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	list, err := s.ListMessagesByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != first || list[1].ID != tied[0] || list[2].ID != tied[1] {
		t.Fatalf("unexpected order: %+v", list)
	}

	if deleted, err := s.DeleteMessage(ctx, other.ID, first); err != nil || deleted {
		t.Fatalf("delete under wrong owner: deleted=%v err=%v", deleted, err)
	}
	if deleted, err := s.DeleteMessage(ctx, owner.ID, first); err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if _, ok, err := s.GetMessage(ctx, first); err != nil || ok {
		t.Fatalf("expected message gone, ok=%v err=%v", ok, err)
	}

	if updated, err := s.UpdateMessageText(ctx, tied[0], "b2"); err != nil || !updated {
		t.Fatalf("update: updated=%v err=%v", updated, err)
	}
	got, ok, err := s.GetMessage(ctx, tied[0])
	if err != nil || !ok || got.Text != "b2" || got.OwnerID != owner.ID {
		t.Fatalf("unexpected message after update: %+v ok=%v err=%v", got, ok, err)
	}

	empty, err := s.ListMessagesByOwner(ctx, other.ID)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v err=%v", empty, err)
	}
}

func TestGormStoreMigrationKeepsOrphanedMessages(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	orphan := uuid.NewString()

	if err := s.db.WithContext(ctx).Exec(`ALTER TABLE message_models DROP CONSTRAINT IF EXISTS message_models_owner_id_fkey`).Error; err != nil {
		t.Fatalf("drop constraint: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Exec(`DELETE FROM message_models WHERE id = ?`, orphan).Error
		if restored, err := NewGormStore(os.Getenv("DATABASE_URL")); err == nil {
			_ = restored.Close()
		}
	})
	now := time.Now().UTC()
	if err := s.CreateMessage(ctx, domain.Message{ID: orphan, OwnerID: "missing-owner", Text: "kept", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	if _, err := NewGormStore(os.Getenv("DATABASE_URL")); err == nil {
		t.Fatalf("expected migration to fail while orphaned messages exist")
	}
	if _, ok, err := s.GetMessage(ctx, orphan); err != nil || !ok {
		t.Fatalf("orphaned message must survive startup, ok=%v err=%v", ok, err)
	}
}
