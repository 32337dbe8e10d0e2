// Package store defines the document store boundary: per-user collections of
// loosely typed documents with a live change feed.
package store

import (
	"context"
	"errors"
	"time"

	"trackme/internal/core"
)

// Collection names a per-user document collection.
type Collection string

const (
	Subscriptions Collection = "subscriptions"
	Incomes       Collection = "incomes"
	Expenses      Collection = "expenses"
)

// Collections lists every collection a user owns.
var Collections = []Collection{Subscriptions, Incomes, Expenses}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return c == Subscriptions || c == Incomes || c == Expenses
}

// CollectionFor returns the collection holding transactions of type t.
func CollectionFor(t core.TransactionType) Collection {
	if t == core.Income {
		return Incomes
	}
	return Expenses
}

// TypeOf is the inverse of CollectionFor.
func TypeOf(c Collection) core.TransactionType {
	if c == Incomes {
		return core.Income
	}
	return core.Expense
}

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrClosed            = errors.New("store closed")
)

// Document is one stored record. Fields holds JSON-compatible values keyed
// by their persisted names; CreatedAt is assigned by the store.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// Snapshot is the full content of a collection at one point in time.
type Snapshot struct {
	UserID     string
	Collection Collection
	Docs       []Document
	Err        error
}

// DocumentStore is implemented by every storage backend.
type DocumentStore interface {
	// Add stores a new document and returns its generated id.
	Add(ctx context.Context, userID string, c Collection, fields map[string]any) (string, error)
	Get(ctx context.Context, userID string, c Collection, id string) (Document, error)
	// Update merges fields into an existing document. CreatedAt never changes.
	Update(ctx context.Context, userID string, c Collection, id string, fields map[string]any) error
	Delete(ctx context.Context, userID string, c Collection, id string) error
	// List returns documents in creation order.
	List(ctx context.Context, userID string, c Collection) ([]Document, error)
	// Watch emits a snapshot right away and again after every change to the
	// collection. The channel is closed once ctx is done.
	Watch(ctx context.Context, userID string, c Collection) (<-chan Snapshot, error)
	// Users lists every user id owning at least one document.
	Users(ctx context.Context) ([]string, error)
	Close() error
}

// CheckArgs validates the user id and collection shared by every call.
func CheckArgs(userID string, c Collection) error {
	if userID == "" {
		return errors.New("empty user id")
	}
	if !c.Valid() {
		return ErrUnknownCollection
	}
	return nil
}

// MergeFields copies patch over base into a fresh map.
func MergeFields(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if k == FieldCreatedAt {
			continue
		}
		out[k] = v
	}
	return out
}
