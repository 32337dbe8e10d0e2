package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"trackme/internal/core"
)

// Persisted field names.
const (
	FieldName            = "name"
	FieldPrice           = "price"
	FieldCurrency        = "currency"
	FieldRenewalInterval = "renewalInterval"
	FieldRenewalDate     = "renewalDate"
	FieldNextDueDate     = "nextDueDate"
	FieldIsPaidThisCycle = "isPaidThisCycle"
	FieldLastPaidDate    = "lastPaidDate"
	FieldTitle           = "title"
	FieldAmount          = "amount"
	FieldCategory        = "category"
	FieldDate            = "date"
	FieldCreatedAt       = "createdAt"
)

// DecodeSubscription maps a stored document onto the domain type, filling
// defaults for anything missing or of the wrong type.
func DecodeSubscription(doc Document) core.Subscription {
	f := doc.Fields
	currency := stringField(f, FieldCurrency)
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return core.Subscription{
		ID:              doc.ID,
		Name:            stringField(f, FieldName),
		Price:           numberField(f, FieldPrice),
		Currency:        currency,
		RenewalInterval: stringField(f, FieldRenewalInterval),
		RenewalDate:     stringField(f, FieldRenewalDate),
		NextDueDate:     stringField(f, FieldNextDueDate),
		IsPaidThisCycle: f[FieldIsPaidThisCycle] == true,
		LastPaidDate:    stringField(f, FieldLastPaidDate),
		CreatedAt:       doc.CreatedAt,
	}
}

// EncodeSubscription produces the fields written on create. Optional
// fields are left out when empty.
func EncodeSubscription(s core.Subscription) map[string]any {
	f := map[string]any{
		FieldName:            s.Name,
		FieldPrice:           s.Price,
		FieldCurrency:        s.CurrencyCode(),
		FieldRenewalDate:     s.RenewalDate,
		FieldIsPaidThisCycle: s.IsPaidThisCycle,
	}
	putOptional(f, FieldRenewalInterval, s.RenewalInterval)
	putOptional(f, FieldNextDueDate, s.NextDueDate)
	putOptional(f, FieldLastPaidDate, s.LastPaidDate)
	return f
}

// PaidFields is the partial update written by mark-paid.
func PaidFields(s core.Subscription) map[string]any {
	return map[string]any{
		FieldIsPaidThisCycle: true,
		FieldLastPaidDate:    s.LastPaidDate,
		FieldNextDueDate:     s.NextDueDate,
		FieldRenewalDate:     s.RenewalDate,
	}
}

// ResetFields is the partial update written by the cycle reset.
func ResetFields() map[string]any {
	return map[string]any{FieldIsPaidThisCycle: false}
}

// DecodeTransaction maps a document of an income or expense collection.
func DecodeTransaction(doc Document, t core.TransactionType) core.Transaction {
	f := doc.Fields
	return core.Transaction{
		ID:        doc.ID,
		Type:      t,
		Title:     stringField(f, FieldTitle),
		Amount:    numberField(f, FieldAmount),
		Category:  stringField(f, FieldCategory),
		Date:      stringField(f, FieldDate),
		CreatedAt: doc.CreatedAt,
	}
}

// EncodeTransaction produces the stored fields. The type is implied by the
// target collection and is not persisted.
func EncodeTransaction(t core.Transaction) map[string]any {
	return map[string]any{
		FieldTitle:    t.Title,
		FieldAmount:   t.Amount,
		FieldCategory: t.Category,
		FieldDate:     t.Date,
	}
}

func putOptional(f map[string]any, key, value string) {
	if value != "" {
		f[key] = value
	}
}

func stringField(f map[string]any, key string) string {
	s, _ := f[key].(string)
	return s
}

// numberField mirrors a lenient numeric coercion: numbers and numeric
// strings are accepted, anything else (and NaN or ±Inf) reads as zero.
func numberField(f map[string]any, key string) float64 {
	var v float64
	switch n := f[key].(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		v, _ = n.Float64()
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		v = parsed
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// MarshalFields encodes fields as JSON for SQL backends.
func MarshalFields(fields map[string]any) ([]byte, error) {
	return json.Marshal(fields)
}

// UnmarshalFields decodes JSON produced by MarshalFields.
func UnmarshalFields(data []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// WithCreatedAt returns a copy of doc.Fields including the createdAt key,
// the shape exported to external consumers.
func WithCreatedAt(doc Document) map[string]any {
	out := make(map[string]any, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		out[k] = v
	}
	out[FieldCreatedAt] = doc.CreatedAt.UTC().Format(time.RFC3339)
	return out
}
