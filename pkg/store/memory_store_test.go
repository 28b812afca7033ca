package store

import (
	"context"
	"testing"

	"messagecrud/pkg/domain"
)

func TestMemoryStoreMessageLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, msg := range []domain.Message{
		{ID: "m1", OwnerID: "u1", Text: "first"},
		{ID: "m2", OwnerID: "u2", Text: "other"},
		{ID: "m3", OwnerID: "u1", Text: "second"},
	} {
		if err := s.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("create %s: %v", msg.ID, err)
		}
	}

	list, err := s.ListMessagesByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "m1" || list[1].ID != "m3" {
		t.Fatalf("unexpected list for u1: %+v", list)
	}

	ok, err := s.UpdateMessageText(ctx, "m1", "edited")
	if err != nil || !ok {
		t.Fatalf("update m1: ok=%v err=%v", ok, err)
	}
	got, found, _ := s.GetMessage(ctx, "m1")
	if !found || got.Text != "edited" || got.OwnerID != "u1" {
		t.Fatalf("unexpected message after update: %+v", got)
	}
	if ok, _ := s.UpdateMessageText(ctx, "missing", "x"); ok {
		t.Fatalf("update of missing message should report false")
	}

	if ok, _ := s.DeleteMessage(ctx, "u2", "m1"); ok {
		t.Fatalf("delete scoped to the wrong owner should report false")
	}
	if ok, _ := s.DeleteMessage(ctx, "u1", "m1"); !ok {
		t.Fatalf("delete by owner should report true")
	}
	if ok, _ := s.DeleteMessage(ctx, "u1", "m1"); ok {
		t.Fatalf("second delete should report false")
	}
	list, _ = s.ListMessagesByOwner(ctx, "u1")
	if len(list) != 1 || list[0].ID != "m3" {
		t.Fatalf("unexpected list after delete: %+v", list)
	}
}

func TestMemoryStoreListEmptyOwnerIsNotNil(t *testing.T) {
	list, err := NewMemoryStore().ListMessagesByOwner(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestMemoryStoreUserLookupByName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveUser(ctx, domain.User{ID: "u1", UserName: "alice", Role: domain.RoleUser}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := s.SaveUser(ctx, domain.User{ID: "u1", UserName: "alice2", Role: domain.RoleUser}); err != nil {
		t.Fatalf("rename user: %v", err)
	}
	if _, ok, _ := s.GetUserByName(ctx, "alice"); ok {
		t.Fatalf("old user name should no longer resolve")
	}
	u, ok, _ := s.GetUserByName(ctx, "alice2")
	if !ok || u.ID != "u1" {
		t.Fatalf("lookup by new name failed: ok=%v user=%+v", ok, u)
	}
}
