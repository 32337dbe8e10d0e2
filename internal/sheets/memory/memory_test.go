package memory

import (
	"context"
	"testing"
)

func TestStoreAppendDeleteList(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendRow(ctx, "Transactions", []any{"a", "u1", "expense"})
	if err != nil || ref != "mem:Transactions:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	_, _ = s.AppendRow(ctx, "Transactions", []any{"b", "u1", "income"})

	ids, _ := s.ListIDs(ctx, "Transactions")
	if !ids["a"] || !ids["b"] || len(ids) != 2 {
		t.Fatalf("ListIDs() = %v", ids)
	}

	found, err := s.DeleteRowByID(ctx, "Transactions", "a")
	if err != nil || !found {
		t.Fatalf("DeleteRowByID(a) = %v, %v", found, err)
	}
	found, _ = s.DeleteRowByID(ctx, "Transactions", "a")
	if found {
		t.Fatal("second delete should report not found")
	}
	rows := s.Rows("Transactions")
	if len(rows) != 1 || rows[0][0] != "b" {
		t.Fatalf("Rows() = %v", rows)
	}
}
