// Package memory is an in-process document store. Data lives for the life
// of the process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trackme/internal/store"
)

type key struct {
	user       string
	collection store.Collection
}

type Store struct {
	mu     sync.Mutex
	docs   map[key][]store.Document
	hub    *store.Hub
	now    func() time.Time
	closed bool
}

func New() *Store {
	return &Store{
		docs: make(map[key][]store.Document),
		hub:  store.NewHub(),
		now:  time.Now,
	}
}

// SetClock replaces the timestamp source for createdAt. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Add(_ context.Context, userID string, c store.Collection, fields map[string]any) (string, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}
	id := uuid.NewString()
	k := key{userID, c}
	s.docs[k] = append(s.docs[k], store.Document{
		ID:        id,
		Fields:    store.MergeFields(nil, fields),
		CreatedAt: s.now().UTC(),
	})
	s.mu.Unlock()

	s.hub.Notify(userID, c)
	return id, nil
}

func (s *Store) Get(_ context.Context, userID string, c store.Collection, id string) (store.Document, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return store.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key{userID, c}, id)
	if i < 0 {
		return store.Document{}, store.ErrNotFound
	}
	return copyDoc(s.docs[key{userID, c}][i]), nil
}

func (s *Store) Update(_ context.Context, userID string, c store.Collection, id string, fields map[string]any) error {
	if err := store.CheckArgs(userID, c); err != nil {
		return err
	}
	s.mu.Lock()
	k := key{userID, c}
	i := s.indexOf(k, id)
	if i < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.docs[k][i].Fields = store.MergeFields(s.docs[k][i].Fields, fields)
	s.mu.Unlock()

	s.hub.Notify(userID, c)
	return nil
}

func (s *Store) Delete(_ context.Context, userID string, c store.Collection, id string) error {
	if err := store.CheckArgs(userID, c); err != nil {
		return err
	}
	s.mu.Lock()
	k := key{userID, c}
	i := s.indexOf(k, id)
	if i < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.docs[k] = append(s.docs[k][:i:i], s.docs[k][i+1:]...)
	s.mu.Unlock()

	s.hub.Notify(userID, c)
	return nil
}

func (s *Store) List(_ context.Context, userID string, c store.Collection) ([]store.Document, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.docs[key{userID, c}]
	out := make([]store.Document, len(docs))
	for i, d := range docs {
		out[i] = copyDoc(d)
	}
	return out, nil
}

func (s *Store) Watch(ctx context.Context, userID string, c store.Collection) (<-chan store.Snapshot, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return nil, err
	}
	return store.WatchLoop(ctx, s.hub, userID, c, func(ctx context.Context) ([]store.Document, error) {
		return s.List(ctx, userID, c)
	}), nil
}

func (s *Store) Users(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var users []string
	for k, docs := range s.docs {
		if len(docs) > 0 && !seen[k.user] {
			seen[k.user] = true
			users = append(users, k.user)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) indexOf(k key, id string) int {
	for i, d := range s.docs[k] {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func copyDoc(d store.Document) store.Document {
	d.Fields = store.MergeFields(nil, d.Fields)
	return d
}
