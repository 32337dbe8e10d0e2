package core

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DefaultCurrency is used for subscriptions stored without a currency.
const DefaultCurrency = "USD"

type (
	TransactionType string

	// Subscription is a recurring payment owned by a single user. Dates are
	// kept as the persisted YYYY-MM-DD strings so malformed values survive a
	// round trip untouched.
	Subscription struct {
		ID              string
		Name            string
		Price           float64
		Currency        string
		RenewalInterval string
		RenewalDate     string
		NextDueDate     string
		IsPaidThisCycle bool
		LastPaidDate    string
		CreatedAt       time.Time
	}

	Transaction struct {
		ID        string
		Type      TransactionType
		Title     string
		Amount    float64
		Category  string
		Date      string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyName           = errors.New("empty name")
	ErrEmptyTitle          = errors.New("empty title")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMissingDate         = errors.New("missing date")
	ErrInvalidDate         = errors.New("invalid date")
	ErrUnknownInterval     = errors.New("unknown renewal interval")
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrNameTooLong         = errors.New("name too long (max 200 characters)")
	ErrTitleTooLong        = errors.New("title too long (max 200 characters)")
	currencyCodePattern    = regexp.MustCompile(`^[A-Z]{3}$`)
	maxDisplayStringLength = 200
)

// Valid reports whether t is one of the two transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// EffectiveDueDate is nextDueDate when set, else renewalDate.
func (s Subscription) EffectiveDueDate() string {
	if strings.TrimSpace(s.NextDueDate) != "" {
		return s.NextDueDate
	}
	return s.RenewalDate
}

// CurrencyCode returns the subscription currency, defaulting to USD.
func (s Subscription) CurrencyCode() string {
	if c := strings.ToUpper(strings.TrimSpace(s.Currency)); c != "" {
		return c
	}
	return DefaultCurrency
}

func (s Subscription) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxDisplayStringLength {
		return ErrNameTooLong
	}
	if math.IsNaN(s.Price) || math.IsInf(s.Price, 0) || s.Price < 0 {
		return ErrInvalidPrice
	}
	if !currencyCodePattern.MatchString(s.CurrencyCode()) {
		return ErrInvalidCurrency
	}
	if s.RenewalInterval != "" {
		if _, ok := LookupRenewalCycle(s.RenewalInterval); !ok {
			return ErrUnknownInterval
		}
	}
	if strings.TrimSpace(s.RenewalDate) == "" {
		return ErrMissingDate
	}
	if _, err := ParseDate(s.RenewalDate); err != nil {
		return ErrInvalidDate
	}
	if s.NextDueDate != "" {
		if _, err := ParseDate(s.NextDueDate); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > maxDisplayStringLength {
		return ErrTitleTooLong
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) || t.Amount < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Date) == "" {
		return ErrMissingDate
	}
	if _, err := ParseDate(t.Date); err != nil {
		return ErrInvalidDate
	}
	if !IsCategory(t.Type, t.Category) {
		return ErrUnknownCategory
	}
	return nil
}
