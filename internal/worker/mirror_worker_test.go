package worker

import (
	"context"
	"testing"

	"trackme/internal/amqp"
	"trackme/internal/sheets"
	sheetsmem "trackme/internal/sheets/memory"
	"trackme/internal/store"
	"trackme/internal/store/memory"
)

func TestMirrorWorker_Backfill(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	subID, _ := st.Add(ctx, "u1", store.Subscriptions, map[string]any{store.FieldName: "Netflix", store.FieldPrice: 10.0})
	_, _ = st.Add(ctx, "u1", store.Incomes, map[string]any{store.FieldTitle: "Pay", store.FieldAmount: 100.0})
	_, _ = st.Add(ctx, "u2", store.Expenses, map[string]any{store.FieldTitle: "Rent", store.FieldAmount: 50.0})

	w := sheetsmem.New()
	_, _ = w.AppendRow(ctx, "Subscriptions", []any{subID})
	mirror := sheets.NewMirror(w, "Subscriptions", "Transactions", nil)
	mw := NewMirrorWorker(st, mirror, w, nil)

	res, err := mw.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if res.Appended != 2 || res.Skipped != 1 || res.Errors != 0 {
		t.Fatalf("Backfill() = %+v", res)
	}
	if rows := w.Rows("Transactions"); len(rows) != 2 {
		t.Fatalf("transaction rows = %v", rows)
	}

	res, _ = mw.Backfill(ctx)
	if res.Appended != 0 || res.Skipped != 3 {
		t.Fatalf("second Backfill() = %+v", res)
	}
}

func TestMirrorWorker_HandleRecordChanged(t *testing.T) {
	w := sheetsmem.New()
	mw := NewMirrorWorker(nil, sheets.NewMirror(w, "Subscriptions", "Transactions", nil), w, nil)
	msg := amqp.NewRecordChangedMessage(amqp.OpCreated, "u1", string(store.Incomes), "i-1", map[string]any{store.FieldTitle: "Gift"})
	if err := mw.HandleRecordChanged(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if rows := w.Rows("Transactions"); len(rows) != 1 || rows[0][2] != "income" {
		t.Fatalf("rows = %v", rows)
	}
	if res, err := mw.Backfill(context.Background()); err != nil || res.Appended != 0 {
		t.Fatalf("Backfill() without store = %+v, %v", res, err)
	}
}
