package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Totals is the income/expense summary for one period.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// Add sums two summaries component-wise.
func (t Totals) Add(o Totals) Totals {
	income := t.Income.Add(o.Income)
	expense := t.Expense.Add(o.Expense)
	return Totals{Income: income, Expense: expense, Net: income.Sub(expense)}
}

// Aggregate totals the transactions whose date falls in p relative to now.
// Empty input yields all-zero totals.
func Aggregate(txs []Transaction, p Period, now Date) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if !InPeriod(tx.Date, p, now) {
			continue
		}
		amount := decimal.NewFromFloat(SanitizeAmount(tx.Amount))
		switch tx.Type {
		case Income:
			income = income.Add(amount)
		case Expense:
			expense = expense.Add(amount)
		}
	}
	return Totals{Income: income, Expense: expense, Net: income.Sub(expense)}
}

// CurrencySubtotal is the sum of subscription prices in one currency.
type CurrencySubtotal struct {
	Currency string
	Amount   decimal.Decimal
}

// String renders the subtotal with its currency symbol.
func (c CurrencySubtotal) String() string {
	return FormatMoney(c.Amount, c.Currency)
}

// SubscriptionTotals groups subscription prices by currency code without any
// conversion. The result is ordered by code.
func SubscriptionTotals(subs []Subscription) []CurrencySubtotal {
	byCode := make(map[string]decimal.Decimal)
	for _, s := range subs {
		code := s.CurrencyCode()
		byCode[code] = byCode[code].Add(decimal.NewFromFloat(SanitizeAmount(s.Price)))
	}
	out := make([]CurrencySubtotal, 0, len(byCode))
	for code, amount := range byCode {
		out = append(out, CurrencySubtotal{Currency: code, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// FormatSubscriptionTotals emits one display string per currency present.
func FormatSubscriptionTotals(subs []Subscription) []string {
	totals := SubscriptionTotals(subs)
	out := make([]string, len(totals))
	for i, t := range totals {
		out[i] = t.String()
	}
	return out
}
