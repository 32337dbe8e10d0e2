package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"trackme/internal/core"
	applog "trackme/internal/log"
	"trackme/internal/store"
)

// ResetTracker remembers which overdue occurrences already had their paid
// flag cleared, so a stale snapshot seen twice does not write twice.
type ResetTracker interface {
	// Claim returns true the first time key is seen.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later pass may try again.
	Release(ctx context.Context, key string) error
}

// ResetKey identifies one overdue occurrence of a subscription.
func ResetKey(userID, subscriptionID, dueDate string) string {
	return userID + "/" + subscriptionID + "@" + dueDate
}

// MemoryResetTracker is a per-process tracker.
type MemoryResetTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryResetTracker() *MemoryResetTracker {
	return &MemoryResetTracker{seen: make(map[string]struct{})}
}

func (t *MemoryResetTracker) Claim(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[key]; ok {
		return false, nil
	}
	t.seen[key] = struct{}{}
	return true, nil
}

func (t *MemoryResetTracker) Release(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.seen, key)
	t.mu.Unlock()
	return nil
}

// Reset forgets every claimed key.
func (t *MemoryResetTracker) Reset() {
	t.mu.Lock()
	t.seen = make(map[string]struct{})
	t.mu.Unlock()
}

// Len reports how many keys are claimed.
func (t *MemoryResetTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// RedisResetTracker shares claims between processes with SETNX. Keys expire
// after ttl so the keyspace does not grow without bound.
type RedisResetTracker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

const defaultResetTTL = 7 * 24 * time.Hour

func NewRedisResetTracker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisResetTracker {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "trackme:reset"
	}
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &RedisResetTracker{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (t *RedisResetTracker) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.prefix+":"+key, 1, t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (t *RedisResetTracker) Release(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, t.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// CycleResetter clears the paid flag of subscriptions whose due date has
// passed. Each overdue occurrence is written at most once per tracker.
type CycleResetter struct {
	store   store.DocumentStore
	tracker ResetTracker
	logger  *applog.Logger
}

func NewCycleResetter(st store.DocumentStore, tracker ResetTracker, logger *applog.Logger) *CycleResetter {
	if tracker == nil {
		tracker = NewMemoryResetTracker()
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &CycleResetter{store: st, tracker: tracker, logger: logger.WithComponent(applog.ComponentReset)}
}

// Pass resets every subscription in subs that needs it and returns how many
// writes succeeded. A failed write is logged and skipped; its claim is
// released so the next pass retries it.
func (r *CycleResetter) Pass(ctx context.Context, userID string, subs []core.Subscription, today core.Date) int {
	if r.store == nil {
		return 0
	}
	reset := 0
	for _, s := range subs {
		if !core.NeedsCycleReset(s, today) {
			continue
		}
		key := ResetKey(userID, s.ID, s.EffectiveDueDate())
		fields := applog.NewFields().WithRecord(userID, string(store.Subscriptions), s.ID).WithOperation(applog.OpReset)
		fields[applog.FieldDueDate] = s.EffectiveDueDate()

		claimed, err := r.tracker.Claim(ctx, key)
		if err != nil {
			r.logger.WarnContext(ctx, "Reset tracker unavailable", fields.WithError(err).ToSlice()...)
			continue
		}
		if !claimed {
			continue
		}
		if err := r.store.Update(ctx, userID, store.Subscriptions, s.ID, store.ResetFields()); err != nil {
			r.logger.WarnContext(ctx, "Failed to reset paid flag", fields.WithError(err).ToSlice()...)
			if rerr := r.tracker.Release(ctx, key); rerr != nil {
				r.logger.WarnContext(ctx, "Failed to release reset claim", fields.WithError(rerr).ToSlice()...)
			}
			continue
		}
		reset++
		r.logger.InfoContext(ctx, "Paid flag cleared for new cycle", fields.ToSlice()...)
	}
	return reset
}

// RunAll applies Pass to every user in the store, a few users at a time.
func (r *CycleResetter) RunAll(ctx context.Context, today core.Date) (int, error) {
	if r.store == nil {
		return 0, ErrServiceUnavailable
	}
	users, err := r.store.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var (
		mu    sync.Mutex
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, userID := range users {
		g.Go(func() error {
			docs, err := r.store.List(gctx, userID, store.Subscriptions)
			if err != nil {
				return fmt.Errorf("list subscriptions for %s: %w", userID, err)
			}
			n := r.Pass(gctx, userID, DecodeSubscriptions(docs), today)
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	r.logger.InfoContext(ctx, "Reset pass finished",
		applog.FieldOperation, applog.OpReset, applog.FieldCount, total, "users", len(users))
	return total, err
}
