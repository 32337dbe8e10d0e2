package core

import (
	"errors"
	"math"
	"testing"
)

func TestSubscriptionValidate(t *testing.T) {
	good := Subscription{
		Name:            "Netflix",
		Price:           15.49,
		Currency:        "EUR",
		RenewalInterval: "1 Month",
		RenewalDate:     "2025-02-01",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	free := good
	free.Price = 0
	free.Currency = ""
	if err := free.Validate(); err != nil {
		t.Fatalf("zero price with default currency should be ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Subscription)
		want error
	}{
		{"blank name", func(s *Subscription) { s.Name = "   " }, ErrEmptyName},
		{"negative price", func(s *Subscription) { s.Price = -1 }, ErrInvalidPrice},
		{"NaN price", func(s *Subscription) { s.Price = math.NaN() }, ErrInvalidPrice},
		{"bad currency", func(s *Subscription) { s.Currency = "dollars" }, ErrInvalidCurrency},
		{"unknown interval", func(s *Subscription) { s.RenewalInterval = "7 Weeks" }, ErrUnknownInterval},
		{"missing renewal date", func(s *Subscription) { s.RenewalDate = "" }, ErrMissingDate},
		{"malformed renewal date", func(s *Subscription) { s.RenewalDate = "next tuesday" }, ErrInvalidDate},
		{"malformed due date", func(s *Subscription) { s.NextDueDate = "2025-13-01" }, ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := good
			tc.mut(&s)
			if err := s.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{Type: Expense, Title: "Groceries", Amount: 42.5, Category: "Food", Date: "2025-01-10"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		tx   Transaction
		want error
	}{
		{Transaction{Type: "refund", Title: "a", Amount: 1, Category: "Food", Date: "2025-01-10"}, ErrInvalidType},
		{Transaction{Type: Expense, Title: "", Amount: 1, Category: "Food", Date: "2025-01-10"}, ErrEmptyTitle},
		{Transaction{Type: Expense, Title: "a", Amount: -3, Category: "Food", Date: "2025-01-10"}, ErrInvalidAmount},
		{Transaction{Type: Expense, Title: "a", Amount: 1, Category: "Food", Date: ""}, ErrMissingDate},
		{Transaction{Type: Income, Title: "a", Amount: 1, Category: "Food", Date: "2025-01-10"}, ErrUnknownCategory},
	}
	for i, tc := range bads {
		if err := tc.tx.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: Validate() = %v, want %v", i, err, tc.want)
		}
	}
}

func TestEffectiveDueDateAndCurrency(t *testing.T) {
	s := Subscription{RenewalDate: "2025-01-01"}
	if got := s.EffectiveDueDate(); got != "2025-01-01" {
		t.Fatalf("fallback to renewalDate, got %q", got)
	}
	s.NextDueDate = "2025-02-01"
	if got := s.EffectiveDueDate(); got != "2025-02-01" {
		t.Fatalf("nextDueDate takes precedence, got %q", got)
	}
	if got := s.CurrencyCode(); got != "USD" {
		t.Fatalf("default currency, got %q", got)
	}
}
