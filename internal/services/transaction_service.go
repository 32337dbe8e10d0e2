package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"trackme/internal/cache"
	"trackme/internal/core"
	applog "trackme/internal/log"
	"trackme/internal/store"
)

// TransactionInput is the raw income/expense form.
type TransactionInput struct {
	Type     core.TransactionType
	Title    string
	Amount   string
	Category string
	Date     string
}

// Overview is one period tab of the money overview.
type Overview struct {
	Period       core.Period
	Totals       core.Totals
	Transactions []core.Transaction
}

// TransactionService manages incomes and expenses. Merged per-user lists
// are cached and dropped on every write made through the service.
type TransactionService struct {
	store  store.DocumentStore
	cache  cache.Cache[[]core.Transaction]
	clock  Clock
	logger *applog.Logger
}

func NewTransactionService(st store.DocumentStore, c cache.Cache[[]core.Transaction], clock Clock, logger *applog.Logger) *TransactionService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &TransactionService{store: st, cache: c, clock: clock, logger: logger.WithComponent(applog.ComponentStore)}
}

func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	if !in.Type.Valid() {
		return core.Transaction{}, core.ErrInvalidType
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Amount) == "" || strings.TrimSpace(in.Date) == "" {
		return core.Transaction{}, ErrIncomplete
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	category := in.Category
	if category == "" {
		category = core.CategoriesFor(in.Type)[0]
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{Type: in.Type, Title: title, Amount: amount, Category: category, Date: date.String()}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if s.store == nil {
		return core.Transaction{}, ErrServiceUnavailable
	}

	c := store.CollectionFor(tx.Type)
	id, err := s.store.Add(ctx, userID, c, store.EncodeTransaction(tx))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create transaction",
			applog.NewFields().WithRecord(userID, string(c), "").WithOperation(applog.OpCreate).WithError(err).ToSlice()...)
		return core.Transaction{}, fmt.Errorf("create %s: %w: %w", tx.Type, ErrWriteFailed, err)
	}
	s.Invalidate(userID)
	tx.ID = id
	return tx, nil
}

// List returns incomes and expenses together, newest first.
func (s *TransactionService) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	if s.store == nil {
		return nil, nil
	}
	key := cacheKey(userID)
	if s.cache != nil {
		if txs, ok := s.cache.Get(key); ok {
			return txs, nil
		}
	}

	var incomes, expenses []store.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = s.store.List(gctx, userID, store.Incomes)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.store.List(gctx, userID, store.Expenses)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	txs := MergeTransactions(incomes, expenses)
	if s.cache != nil {
		s.cache.Set(key, txs)
	}
	return txs, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID string, t core.TransactionType, id string) error {
	if !t.Valid() {
		return core.ErrInvalidType
	}
	if s.store == nil {
		return ErrServiceUnavailable
	}
	if err := s.store.Delete(ctx, userID, store.CollectionFor(t), id); err != nil {
		return fmt.Errorf("delete %s %s: %w: %w", t, id, ErrWriteFailed, err)
	}
	s.Invalidate(userID)
	return nil
}

// Overview totals the period and returns the transactions inside it.
func (s *TransactionService) Overview(ctx context.Context, userID string, p core.Period) (Overview, error) {
	txs, err := s.List(ctx, userID)
	if err != nil {
		return Overview{Period: p}, err
	}
	return BuildOverview(txs, p, s.clock.Today()), nil
}

// Invalidate drops the cached list for userID. Writes made through the
// service call it; changes seen on the live feed call it for writes made
// elsewhere.
func (s *TransactionService) Invalidate(userID string) {
	if s.cache != nil {
		s.cache.DeletePrefix(userID + ":")
	}
}

func cacheKey(userID string) string { return userID + ":transactions" }

// BuildOverview filters txs to p and totals them.
func BuildOverview(txs []core.Transaction, p core.Period, today core.Date) Overview {
	var in []core.Transaction
	for _, tx := range txs {
		if core.InPeriod(tx.Date, p, today) {
			in = append(in, tx)
		}
	}
	return Overview{Period: p, Totals: core.Aggregate(txs, p, today), Transactions: in}
}

// MergeTransactions decodes both collections and orders the result by
// creation time, newest first.
func MergeTransactions(incomes, expenses []store.Document) []core.Transaction {
	txs := make([]core.Transaction, 0, len(incomes)+len(expenses))
	for _, d := range incomes {
		txs = append(txs, store.DecodeTransaction(d, core.Income))
	}
	for _, d := range expenses {
		txs = append(txs, store.DecodeTransaction(d, core.Expense))
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs
}
