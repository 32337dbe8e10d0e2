package backend

import (
	"context"
	"errors"

	"trackme/internal/amqp"
	applog "trackme/internal/log"
	"trackme/internal/store"
)

// Publisher announces record changes. *amqp.Client implements it.
type Publisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
	Close() error
}

// PublishingStore decorates a DocumentStore and publishes a message after
// each successful write. Publish failures are logged and never fail the
// write itself.
type PublishingStore struct {
	store.DocumentStore
	publisher Publisher
	logger    *applog.Logger
}

func NewPublishingStore(inner store.DocumentStore, publisher Publisher, logger *applog.Logger) *PublishingStore {
	if logger == nil {
		logger = applog.Discard()
	}
	return &PublishingStore{DocumentStore: inner, publisher: publisher, logger: logger}
}

func (p *PublishingStore) Add(ctx context.Context, userID string, c store.Collection, fields map[string]any) (string, error) {
	id, err := p.DocumentStore.Add(ctx, userID, c, fields)
	if err != nil {
		return "", err
	}
	p.publishDocument(ctx, amqp.OpCreated, userID, c, id)
	return id, nil
}

func (p *PublishingStore) Update(ctx context.Context, userID string, c store.Collection, id string, fields map[string]any) error {
	if err := p.DocumentStore.Update(ctx, userID, c, id, fields); err != nil {
		return err
	}
	p.publishDocument(ctx, amqp.OpUpdated, userID, c, id)
	return nil
}

func (p *PublishingStore) Delete(ctx context.Context, userID string, c store.Collection, id string) error {
	if err := p.DocumentStore.Delete(ctx, userID, c, id); err != nil {
		return err
	}
	p.publish(ctx, amqp.NewRecordChangedMessage(amqp.OpDeleted, userID, string(c), id, nil))
	return nil
}

func (p *PublishingStore) Close() error {
	return errors.Join(p.publisher.Close(), p.DocumentStore.Close())
}

func (p *PublishingStore) publishDocument(ctx context.Context, op amqp.ChangeOp, userID string, c store.Collection, id string) {
	doc, err := p.DocumentStore.Get(ctx, userID, c, id)
	if err != nil {
		p.logger.WarnContext(ctx, "Cannot load document for change message",
			applog.NewFields().WithRecord(userID, string(c), id).WithError(err).ToSlice()...)
		return
	}
	p.publish(ctx, amqp.NewRecordChangedMessage(op, userID, string(c), id, store.WithCreatedAt(doc)))
}

func (p *PublishingStore) publish(ctx context.Context, msg *amqp.RecordChangedMessage) {
	if err := p.publisher.PublishRecordChanged(ctx, msg); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish record change",
			applog.NewFields().
				WithRecord(msg.UserID, msg.Collection, msg.ID).
				WithOperation(applog.OpPublish).
				WithError(err).
				ToSlice()...)
	}
}
