package store

import (
	"context"
	"sync"
)

type hubKey struct {
	user       string
	collection Collection
}

// Hub fans change notifications out to watchers of a (user, collection)
// pair. Signals coalesce: a watcher that has not caught up sees one pending
// signal no matter how many writes happened.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[hubKey]map[int]chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[hubKey]map[int]chan struct{})}
}

// Subscribe registers a watcher. The returned cancel func must be called to
// release it.
func (h *Hub) Subscribe(userID string, c Collection) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := hubKey{userID, c}
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan struct{})
	}
	id := h.nextID
	h.nextID++
	ch := make(chan struct{}, 1)
	h.subs[key][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
}

// Notify signals every watcher of (userID, c) without blocking.
func (h *Hub) Notify(userID string, c Collection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[hubKey{userID, c}] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watchers returns the number of live subscriptions for (userID, c).
func (h *Hub) Watchers(userID string, c Collection) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[hubKey{userID, c}])
}

// ListFunc loads the current content of one collection.
type ListFunc func(ctx context.Context) ([]Document, error)

// WatchLoop turns hub signals into snapshots. It emits once immediately,
// then after every signal, and closes the channel when ctx is done.
func WatchLoop(ctx context.Context, h *Hub, userID string, c Collection, list ListFunc) <-chan Snapshot {
	signals, cancel := h.Subscribe(userID, c)
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer cancel()
		for {
			docs, err := list(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot{UserID: userID, Collection: c, Docs: docs, Err: err}:
			case <-ctx.Done():
				return
			}
			select {
			case <-signals:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
