package worker

import (
	"context"
	"fmt"

	"trackme/internal/amqp"
	applog "trackme/internal/log"
	"trackme/internal/sheets"
	"trackme/internal/store"
)

// MirrorWorker keeps the spreadsheet mirror in step with the store. Live
// changes arrive over AMQP; Backfill recovers anything missed while the
// worker was down.
type MirrorWorker struct {
	store  store.DocumentStore
	mirror *sheets.Mirror
	writer sheets.Writer
	logger *applog.Logger
}

func NewMirrorWorker(st store.DocumentStore, mirror *sheets.Mirror, writer sheets.Writer, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MirrorWorker{store: st, mirror: mirror, writer: writer, logger: logger.WithComponent(applog.ComponentSheets)}
}

// HandleRecordChanged processes a single change message from AMQP.
func (w *MirrorWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	w.logger.DebugContext(ctx, "Processing record change",
		applog.NewFields().WithRecord(msg.UserID, msg.Collection, msg.ID).WithOperation(string(msg.Op)).ToSlice()...)
	return w.mirror.Handle(ctx, msg)
}

// BackfillResult counts what a backfill did.
type BackfillResult struct {
	Appended int
	Skipped  int
	Errors   int
}

// Backfill appends every stored document whose id is not yet in its sheet.
func (w *MirrorWorker) Backfill(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult
	if w.store == nil {
		return res, nil
	}
	users, err := w.store.Users(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}

	present := make(map[string]map[string]bool)
	for _, userID := range users {
		for _, c := range store.Collections {
			sheet, err := w.mirror.SheetFor(c)
			if err != nil {
				return res, err
			}
			if present[sheet] == nil {
				ids, err := w.writer.ListIDs(ctx, sheet)
				if err != nil {
					return res, fmt.Errorf("list ids in %s: %w", sheet, err)
				}
				present[sheet] = ids
			}

			docs, err := w.store.List(ctx, userID, c)
			if err != nil {
				return res, fmt.Errorf("list %s for %s: %w", c, userID, err)
			}
			for _, doc := range docs {
				if present[sheet][doc.ID] {
					res.Skipped++
					continue
				}
				doc.Fields = store.WithCreatedAt(doc)
				if _, err := w.writer.AppendRow(ctx, sheet, sheets.Row(userID, c, doc)); err != nil {
					w.logger.ErrorContext(ctx, "Failed to backfill row",
						applog.NewFields().WithRecord(userID, string(c), doc.ID).WithError(err).ToSlice()...)
					res.Errors++
					continue
				}
				present[sheet][doc.ID] = true
				res.Appended++
			}
		}
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		"users", len(users), "appended", res.Appended, "skipped", res.Skipped, "errors", res.Errors)
	return res, nil
}
