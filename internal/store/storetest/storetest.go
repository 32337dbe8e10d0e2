// Package storetest holds behaviour checks shared by every DocumentStore
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"trackme/internal/store"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.DocumentStore) {
	t.Run("add get update delete", func(t *testing.T) { testCRUD(t, open(t)) })
	t.Run("list keeps creation order", func(t *testing.T) { testListOrder(t, open(t)) })
	t.Run("users are isolated", func(t *testing.T) { testIsolation(t, open(t)) })
	t.Run("watch emits snapshots", func(t *testing.T) { testWatch(t, open(t)) })
	t.Run("rejects bad arguments", func(t *testing.T) { testArgs(t, open(t)) })
}

func testCRUD(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	id, err := s.Add(ctx, "user-1", store.Subscriptions, map[string]any{
		store.FieldName:  "Netflix",
		store.FieldPrice: 15.49,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if id == "" {
		t.Fatal("Add() returned empty id")
	}

	doc, err := s.Get(ctx, "user-1", store.Subscriptions, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Fields[store.FieldName] != "Netflix" || doc.Fields[store.FieldPrice] != 15.49 {
		t.Fatalf("Get() fields = %v", doc.Fields)
	}
	created := doc.CreatedAt
	if created.IsZero() {
		t.Fatal("CreatedAt not set")
	}

	err = s.Update(ctx, "user-1", store.Subscriptions, id, map[string]any{
		store.FieldIsPaidThisCycle: true,
		store.FieldCreatedAt:       "1999-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	doc, _ = s.Get(ctx, "user-1", store.Subscriptions, id)
	if doc.Fields[store.FieldIsPaidThisCycle] != true || doc.Fields[store.FieldName] != "Netflix" {
		t.Fatalf("Update() did not merge: %v", doc.Fields)
	}
	if !doc.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt changed from %v to %v", created, doc.CreatedAt)
	}
	if _, ok := doc.Fields[store.FieldCreatedAt]; ok {
		t.Fatal("createdAt must not be writable through Update")
	}

	if err := s.Delete(ctx, "user-1", store.Subscriptions, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "user-1", store.Subscriptions, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "user-1", store.Subscriptions, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, "user-1", store.Subscriptions, "missing", map[string]any{"x": 1.0}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Update() on missing doc error = %v, want ErrNotFound", err)
	}
}

func testListOrder(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	titles := []string{"first", "second", "third"}
	for _, title := range titles {
		if _, err := s.Add(ctx, "user-1", store.Expenses, map[string]any{store.FieldTitle: title}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	docs, err := s.List(ctx, "user-1", store.Expenses)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != len(titles) {
		t.Fatalf("List() returned %d docs", len(docs))
	}
	for i, d := range docs {
		if d.Fields[store.FieldTitle] != titles[i] {
			t.Fatalf("docs[%d] = %v, want %s", i, d.Fields[store.FieldTitle], titles[i])
		}
	}
}

func testIsolation(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	if _, err := s.Add(ctx, "alice", store.Incomes, map[string]any{store.FieldTitle: "Salary"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, "bob", store.Expenses, map[string]any{store.FieldTitle: "Rent"}); err != nil {
		t.Fatal(err)
	}
	docs, err := s.List(ctx, "bob", store.Incomes)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Fatalf("bob sees %d of alice's incomes", len(docs))
	}
	users, err := s.Users(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("Users() = %v", users)
	}
}

func testWatch(t *testing.T, s store.DocumentStore) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Watch(ctx, "user-1", store.Incomes)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	first := next(t, ch)
	if len(first.Docs) != 0 {
		t.Fatalf("initial snapshot has %d docs", len(first.Docs))
	}

	if _, err := s.Add(context.Background(), "user-1", store.Incomes, map[string]any{store.FieldTitle: "Bonus"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ch, func(snap store.Snapshot) bool { return len(snap.Docs) == 1 })

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func testArgs(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	if _, err := s.Add(ctx, "", store.Incomes, nil); err == nil {
		t.Fatal("expected error for empty user")
	}
	if _, err := s.List(ctx, "user-1", store.Collection("bogus")); !errors.Is(err, store.ErrUnknownCollection) {
		t.Fatalf("List() error = %v, want ErrUnknownCollection", err)
	}
}

func next(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
		if snap.Err != nil {
			t.Fatalf("snapshot error: %v", snap.Err)
		}
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func waitFor(t *testing.T, ch <-chan store.Snapshot, cond func(store.Snapshot) bool) {
	t.Helper()
	for i := 0; i < 10; i++ {
		if cond(next(t, ch)) {
			return
		}
	}
	t.Fatal("condition never met")
}
