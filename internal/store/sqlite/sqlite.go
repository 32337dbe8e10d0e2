// Package sqlite stores documents in a single SQLite table with the fields
// kept as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	applog "trackme/internal/log"
	"trackme/internal/store"
)

type Store struct {
	db     *sql.DB
	hub    *store.Hub
	logger *applog.Logger
	now    func() time.Time
}

func New(dbPath string, logger *applog.Logger) (*Store, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection serialises writers and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		hub:    store.NewHub(),
		logger: logger.WithComponent(applog.ComponentStore),
		now:    time.Now,
	}, nil
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (user_id, collection, id, fields, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, string(c), id, string(body), s.now().UTC().UnixNano())
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
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fields, created_at FROM documents WHERE user_id = ? AND collection = ? AND id = ?`,
		userID, string(c), id)
	return scanDocument(row)
}

func (s *Store) Update(ctx context.Context, userID string, c store.Collection, id string, fields map[string]any) error {
	if err := store.CheckArgs(userID, c); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	doc, err := scanDocument(tx.QueryRowContext(ctx,
		`SELECT id, fields, created_at FROM documents WHERE user_id = ? AND collection = ? AND id = ?`,
		userID, string(c), id))
	if err != nil {
		return err
	}
	body, err := store.MarshalFields(store.MergeFields(doc.Fields, fields))
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET fields = ? WHERE user_id = ? AND collection = ? AND id = ?`,
		string(body), userID, string(c), id); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	s.hub.Notify(userID, c)
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string, c store.Collection, id string) error {
	if err := store.CheckArgs(userID, c); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE user_id = ? AND collection = ? AND id = ?`,
		userID, string(c), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	s.hub.Notify(userID, c)
	return nil
}

func (s *Store) List(ctx context.Context, userID string, c store.Collection) ([]store.Document, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields, created_at FROM documents WHERE user_id = ? AND collection = ? ORDER BY seq`,
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

// Watch only sees writes made through this Store value.
func (s *Store) Watch(ctx context.Context, userID string, c store.Collection) (<-chan store.Snapshot, error) {
	if err := store.CheckArgs(userID, c); err != nil {
		return nil, err
	}
	return store.WatchLoop(ctx, s.hub, userID, c, func(ctx context.Context) ([]store.Document, error) {
		return s.List(ctx, userID, c)
	}), nil
}

func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (store.Document, error) {
	var (
		doc     store.Document
		body    string
		created int64
	)
	if err := row.Scan(&doc.ID, &body, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, fmt.Errorf("scan document: %w", err)
	}
	fields, err := store.UnmarshalFields([]byte(body))
	if err != nil {
		return store.Document{}, fmt.Errorf("decode fields of %s: %w", doc.ID, err)
	}
	doc.Fields = fields
	doc.CreatedAt = time.Unix(0, created).UTC()
	return doc, nil
}
