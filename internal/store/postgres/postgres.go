// Package postgres stores documents as JSONB rows. A trigger publishes every
// change on a NOTIFY channel so watchers in other processes see it too.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	applog "trackme/internal/log"
	"trackme/internal/store"
)

const notifyChannel = "trackme_documents"

type Store struct {
	pool   *pgxpool.Pool
	hub    *store.Hub
	logger *applog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects, migrates and starts the LISTEN loop.
func New(ctx context.Context, databaseURL string, logger *applog.Logger) (*Store, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		hub:    store.NewHub(),
		logger: logger.WithComponent(applog.ComponentStore),
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.listen(listenCtx)
	return s, nil
}

func (s *Store) Add(ctx context.Context, userID string, c store.Collection, fields map[string]any) (string, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return "", err
	}
	body, err := store.MarshalFields(store.MergeFields(nil, fields))
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (user_id, collection, id, fields) VALUES ($1, $2, $3, $4::jsonb)`,
		userID, string(c), id, string(body))
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	s.hub.Notify(userID, c)
	return id, nil
}

func (s *Store) Get(ctx context.Context, userID string, c store.Collection, id string) (store.Document, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return store.Document{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, fields, created_at FROM documents WHERE user_id = $1 AND collection = $2 AND id = $3`,
		userID, string(c), id)
	return scanDocument(row)
}

// Update merges at the top level with the jsonb || operator.
func (s *Store) Update(ctx context.Context, userID string, c store.Collection, id string, fields map[string]any) error {
	if err := store.CheckArgs(userID, c); err != nil {
		return err
	}
	body, err := store.MarshalFields(store.MergeFields(nil, fields))
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET fields = fields || $4::jsonb WHERE user_id = $1 AND collection = $2 AND id = $3`,
		userID, string(c), id, string(body))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	s.hub.Notify(userID, c)
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string, c store.Collection, id string) error {
	if err := store.CheckArgs(userID, c); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE user_id = $1 AND collection = $2 AND id = $3`,
		userID, string(c), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	s.hub.Notify(userID, c)
	return nil
}

func (s *Store) List(ctx context.Context, userID string, c store.Collection) ([]store.Document, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, fields, created_at FROM documents WHERE user_id = $1 AND collection = $2 ORDER BY seq`,
		userID, string(c))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Watch(ctx context.Context, userID string, c store.Collection) (<-chan store.Snapshot, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return nil, err
	}
	return store.WatchLoop(ctx, s.hub, userID, c, func(ctx context.Context) ([]store.Document, error) {
		return s.List(ctx, userID, c)
	}), nil
}

func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func (s *Store) Close() error {
	s.cancel()
	s.wg.Wait()
	s.pool.Close()
	return nil
}

type changePayload struct {
	UserID     string `json:"user_id"`
	Collection string `json:"collection"`
}

// listen holds one pooled connection in LISTEN mode and forwards every
// notification to the hub. Lost connections are retried with a growing
// delay.
func (s *Store) listen(ctx context.Context) {
	defer s.wg.Done()
	delay := time.Second
	for ctx.Err() == nil {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("LISTEN connection lost", applog.FieldError, err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var p changePayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			s.logger.Warn("Ignoring malformed change notification", applog.FieldError, err)
			continue
		}
		s.hub.Notify(p.UserID, store.Collection(p.Collection))
	}
}

func scanDocument(row pgx.Row) (store.Document, error) {
	var doc store.Document
	if err := row.Scan(&doc.ID, &doc.Fields, &doc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, fmt.Errorf("scan document: %w", err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc, nil
}
