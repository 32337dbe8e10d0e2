package services

import (
	"context"
	"fmt"

	"trackme/internal/core"
	applog "trackme/internal/log"
	"trackme/internal/store"
)

// SubscriptionRow is a subscription with its computed badge.
type SubscriptionRow struct {
	core.Subscription
	State core.DueState
}

// Dashboard is everything the signed-in views render for one user.
type Dashboard struct {
	UserID        string
	Today         core.Date
	Subscriptions []SubscriptionRow
	Transactions  []core.Transaction
	Totals        map[core.Period]core.Totals
	// SubscriptionTotals has one entry per currency present.
	SubscriptionTotals []core.CurrencySubtotal
	Err                error
}

// Overview picks the transactions and totals of one period.
func (d Dashboard) Overview(p core.Period) Overview {
	return BuildOverview(d.Transactions, p, d.Today)
}

// BuildDashboard computes a dashboard from plain lists.
func BuildDashboard(userID string, subs []core.Subscription, txs []core.Transaction, today core.Date) Dashboard {
	rows := make([]SubscriptionRow, len(subs))
	for i, s := range subs {
		rows[i] = SubscriptionRow{Subscription: s, State: s.DueState(today)}
	}
	totals := make(map[core.Period]core.Totals, len(core.Periods))
	for _, p := range core.Periods {
		totals[p] = core.Aggregate(txs, p, today)
	}
	return Dashboard{
		UserID:             userID,
		Today:              today,
		Subscriptions:      rows,
		Transactions:       txs,
		Totals:             totals,
		SubscriptionTotals: core.SubscriptionTotals(subs),
	}
}

// LiveDashboard recomputes a user's dashboard whenever any of their
// collections changes.
type LiveDashboard struct {
	store        store.DocumentStore
	resetter     *CycleResetter
	transactions *TransactionService
	clock        Clock
	logger       *applog.Logger
}

func NewLiveDashboard(st store.DocumentStore, resetter *CycleResetter, clock Clock, logger *applog.Logger) *LiveDashboard {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LiveDashboard{store: st, resetter: resetter, clock: clock, logger: logger.WithComponent(applog.ComponentLive)}
}

// WithTransactions makes income and expense snapshots drop the service's
// cached list, so a page reloaded after a refresh sees writes from other
// processes.
func (l *LiveDashboard) WithTransactions(ts *TransactionService) *LiveDashboard {
	l.transactions = ts
	return l
}

// Watch emits a dashboard once all three collections have reported, then
// after every change. Subscription snapshots also drive the cycle reset.
// The channel closes when ctx is done.
func (l *LiveDashboard) Watch(ctx context.Context, userID string) (<-chan Dashboard, error) {
	if l.store == nil {
		return nil, ErrServiceUnavailable
	}
	ctx, cancel := context.WithCancel(ctx)
	feeds := make(map[store.Collection]<-chan store.Snapshot, len(store.Collections))
	for _, c := range store.Collections {
		ch, err := l.store.Watch(ctx, userID, c)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("watch %s: %w", c, err)
		}
		feeds[c] = ch
	}

	out := make(chan Dashboard, 1)
	go func() {
		defer close(out)
		defer cancel()

		var (
			subs             []core.Subscription
			incomes, expense []store.Document
			seen             = make(map[store.Collection]bool, len(feeds))
			lastErr          error
		)
		subFeed, incFeed, expFeed := feeds[store.Subscriptions], feeds[store.Incomes], feeds[store.Expenses]

		for {
			var snap store.Snapshot
			var ok bool
			select {
			case <-ctx.Done():
				return
			case snap, ok = <-subFeed:
			case snap, ok = <-incFeed:
			case snap, ok = <-expFeed:
			}
			if !ok {
				return
			}

			lastErr = snap.Err
			if snap.Err != nil {
				l.logger.WarnContext(ctx, "Snapshot failed",
					applog.NewFields().WithRecord(userID, string(snap.Collection), "").WithOperation(applog.OpWatch).WithError(snap.Err).ToSlice()...)
			} else {
				seen[snap.Collection] = true
				switch snap.Collection {
				case store.Subscriptions:
					subs = DecodeSubscriptions(snap.Docs)
					if l.resetter != nil {
						l.resetter.Pass(ctx, userID, subs, l.clock.Today())
					}
				case store.Incomes:
					incomes = snap.Docs
					l.invalidateTransactions(userID)
				case store.Expenses:
					expense = snap.Docs
					l.invalidateTransactions(userID)
				}
			}
			if len(seen) < len(feeds) {
				continue
			}

			d := BuildDashboard(userID, subs, MergeTransactions(incomes, expense), l.clock.Today())
			d.Err = lastErr
			// Keep only the newest dashboard if the reader is behind.
			select {
			case <-out:
			default:
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (l *LiveDashboard) invalidateTransactions(userID string) {
	if l.transactions != nil {
		l.transactions.Invalidate(userID)
	}
}
