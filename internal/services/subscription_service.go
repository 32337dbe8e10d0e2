package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"trackme/internal/core"
	applog "trackme/internal/log"
	"trackme/internal/store"
)

// SubscriptionInput is the raw subscription form.
type SubscriptionInput struct {
	Name            string
	Price           string
	Currency        string
	RenewalInterval string
	RenewalDate     string
}

// SubscriptionService creates, lists and updates a user's subscriptions.
type SubscriptionService struct {
	store  store.DocumentStore
	clock  Clock
	logger *applog.Logger
}

// NewSubscriptionService accepts a nil store; writes then fail with
// ErrServiceUnavailable and reads return nothing.
func NewSubscriptionService(st store.DocumentStore, clock Clock, logger *applog.Logger) *SubscriptionService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &SubscriptionService{store: st, clock: clock, logger: logger.WithComponent(applog.ComponentStore)}
}

// Create validates the form and stores a new unpaid subscription. A blank
// renewal date is derived from the interval, counted from today.
func (s *SubscriptionService) Create(ctx context.Context, userID string, in SubscriptionInput) (core.Subscription, error) {
	name := strings.TrimSpace(in.Name)
	renewalDate := strings.TrimSpace(in.RenewalDate)
	if renewalDate == "" && in.RenewalInterval != "" {
		if cycle, ok := core.LookupRenewalCycle(in.RenewalInterval); ok {
			renewalDate = core.AddMonths(s.clock.Today(), cycle.Months).String()
		}
	}
	if name == "" || strings.TrimSpace(in.Price) == "" || renewalDate == "" {
		return core.Subscription{}, ErrIncomplete
	}
	price, err := core.ParseAmount(in.Price)
	if err != nil {
		return core.Subscription{}, core.ErrInvalidPrice
	}

	sub := core.Subscription{
		Name:            name,
		Price:           price,
		Currency:        strings.ToUpper(strings.TrimSpace(in.Currency)),
		RenewalInterval: in.RenewalInterval,
		RenewalDate:     renewalDate,
	}
	sub.Currency = sub.CurrencyCode()
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	if s.store == nil {
		return core.Subscription{}, ErrServiceUnavailable
	}

	id, err := s.store.Add(ctx, userID, store.Subscriptions, store.EncodeSubscription(sub))
	if err != nil {
		s.logFailure(ctx, "Failed to create subscription", userID, "", applog.OpCreate, err)
		return core.Subscription{}, fmt.Errorf("create subscription: %w: %w", ErrWriteFailed, err)
	}
	sub.ID = id
	s.logger.InfoContext(ctx, "Subscription created",
		applog.NewFields().WithRecord(userID, string(store.Subscriptions), id).WithOperation(applog.OpCreate).ToSlice()...)
	return sub, nil
}

// List returns the user's subscriptions ordered by renewal date.
func (s *SubscriptionService) List(ctx context.Context, userID string) ([]core.Subscription, error) {
	if s.store == nil {
		return nil, nil
	}
	docs, err := s.store.List(ctx, userID, store.Subscriptions)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return DecodeSubscriptions(docs), nil
}

// MarkPaid records today's payment and moves the due date one interval on.
func (s *SubscriptionService) MarkPaid(ctx context.Context, userID, id string) (core.Subscription, error) {
	if s.store == nil {
		return core.Subscription{}, ErrServiceUnavailable
	}
	doc, err := s.store.Get(ctx, userID, store.Subscriptions, id)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("mark paid %s: %w: %w", id, ErrWriteFailed, err)
	}
	paid := core.MarkPaid(store.DecodeSubscription(doc), s.clock.Today())
	if err := s.store.Update(ctx, userID, store.Subscriptions, id, store.PaidFields(paid)); err != nil {
		s.logFailure(ctx, "Failed to mark subscription paid", userID, id, applog.OpMarkPaid, err)
		return core.Subscription{}, fmt.Errorf("mark paid %s: %w: %w", id, ErrWriteFailed, err)
	}
	s.logger.InfoContext(ctx, "Subscription marked paid",
		applog.NewFields().WithRecord(userID, string(store.Subscriptions), id).WithOperation(applog.OpMarkPaid).ToSlice()...)
	return paid, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	if s.store == nil {
		return ErrServiceUnavailable
	}
	if err := s.store.Delete(ctx, userID, store.Subscriptions, id); err != nil {
		s.logFailure(ctx, "Failed to delete subscription", userID, id, applog.OpDelete, err)
		return fmt.Errorf("delete subscription %s: %w: %w", id, ErrWriteFailed, err)
	}
	return nil
}

// Totals sums the user's subscription prices per currency.
func (s *SubscriptionService) Totals(ctx context.Context, userID string) ([]core.CurrencySubtotal, error) {
	subs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.SubscriptionTotals(subs), nil
}

// Today exposes the service clock to callers rendering due states.
func (s *SubscriptionService) Today() core.Date {
	return s.clock.Today()
}

func (s *SubscriptionService) logFailure(ctx context.Context, msg, userID, id, op string, err error) {
	s.logger.ErrorContext(ctx, msg,
		applog.NewFields().WithRecord(userID, string(store.Subscriptions), id).WithOperation(op).WithError(err).ToSlice()...)
}

// DecodeSubscriptions decodes and orders documents by renewal date.
func DecodeSubscriptions(docs []store.Document) []core.Subscription {
	subs := make([]core.Subscription, len(docs))
	for i, d := range docs {
		subs[i] = store.DecodeSubscription(d)
	}
	SortSubscriptions(subs)
	return subs
}

// SortSubscriptions orders by renewal date ascending, stable for ties.
func SortSubscriptions(subs []core.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].RenewalDate < subs[j].RenewalDate })
}
