package sheets

import (
	"context"
	"fmt"

	"trackme/internal/amqp"
	"trackme/internal/core"
	applog "trackme/internal/log"
	"trackme/internal/store"
)

var (
	SubscriptionHeader = []any{"ID", "User", "Name", "Price", "Currency", "Interval", "Due date", "Paid", "Last paid"}
	TransactionHeader  = []any{"ID", "User", "Type", "Title", "Amount", "Category", "Date", "Created"}
)

// Mirror copies record changes into a spreadsheet: one sheet for
// subscriptions and one shared by incomes and expenses.
type Mirror struct {
	writer             Writer
	subscriptionsSheet string
	transactionsSheet  string
	logger             *applog.Logger
}

func NewMirror(w Writer, subscriptionsSheet, transactionsSheet string, logger *applog.Logger) *Mirror {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Mirror{
		writer:             w,
		subscriptionsSheet: subscriptionsSheet,
		transactionsSheet:  transactionsSheet,
		logger:             logger.WithComponent(applog.ComponentSheets),
	}
}

// SheetFor returns the sheet a collection is mirrored to.
func (m *Mirror) SheetFor(c store.Collection) (string, error) {
	switch c {
	case store.Subscriptions:
		return m.subscriptionsSheet, nil
	case store.Incomes, store.Expenses:
		return m.transactionsSheet, nil
	}
	return "", fmt.Errorf("%w: %q", store.ErrUnknownCollection, c)
}

// Handle applies one change message. Updates replace the existing row.
// It matches amqp.Handler.
func (m *Mirror) Handle(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	c := store.Collection(msg.Collection)
	sheet, err := m.SheetFor(c)
	if err != nil {
		return err
	}
	fields := applog.NewFields().WithRecord(msg.UserID, msg.Collection, msg.ID).WithOperation(applog.OpMirror)

	if msg.Op == amqp.OpUpdated || msg.Op == amqp.OpDeleted {
		found, err := m.writer.DeleteRowByID(ctx, sheet, msg.ID)
		if err != nil {
			return fmt.Errorf("delete row %s: %w", msg.ID, err)
		}
		if !found && msg.Op == amqp.OpDeleted {
			m.logger.WarnContext(ctx, "No mirrored row to delete", fields.ToSlice()...)
			return nil
		}
	}
	if msg.Op == amqp.OpDeleted {
		m.logger.InfoContext(ctx, "Mirrored row deleted", fields.ToSlice()...)
		return nil
	}

	doc := store.Document{ID: msg.ID, Fields: msg.Fields}
	ref, err := m.writer.AppendRow(ctx, sheet, Row(msg.UserID, c, doc))
	if err != nil {
		return fmt.Errorf("append row %s: %w", msg.ID, err)
	}
	m.logger.InfoContext(ctx, "Row mirrored", append(fields.ToSlice(), "sheets_ref", ref)...)
	return nil
}

// Row renders a stored document as a sheet row.
func Row(userID string, c store.Collection, doc store.Document) []any {
	if c == store.Subscriptions {
		return SubscriptionRow(userID, store.DecodeSubscription(doc))
	}
	tx := store.DecodeTransaction(doc, store.TypeOf(c))
	created, _ := doc.Fields[store.FieldCreatedAt].(string)
	return TransactionRow(userID, tx, created)
}

func SubscriptionRow(userID string, s core.Subscription) []any {
	return []any{
		s.ID, userID, s.Name, core.SanitizeAmount(s.Price), s.CurrencyCode(),
		s.RenewalInterval, s.EffectiveDueDate(), s.IsPaidThisCycle, s.LastPaidDate,
	}
}

func TransactionRow(userID string, t core.Transaction, created string) []any {
	return []any{
		t.ID, userID, string(t.Type), t.Title, core.SanitizeAmount(t.Amount), t.Category, t.Date, created,
	}
}
