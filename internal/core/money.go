// Package core provides money parsing and handling utilities.
//
// This file contains the form-input parser for prices and amounts and the
// coercion applied before anything is summed.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrMissingAmount is returned when a price or amount field is blank.
var ErrMissingAmount = errors.New("missing amount")

// ParseAmount converts user input to a non-negative amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Negative, non-numeric and non-finite values are rejected; zero is allowed
// (free tiers and trial subscriptions exist).
//
// Examples:
//
//	ParseAmount("9.99") -> 9.99, nil
//	ParseAmount("9,99") -> 9.99, nil
//	ParseAmount("-1")   -> 0, ErrInvalidAmount
//	ParseAmount("")     -> 0, ErrMissingAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMissingAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// SanitizeAmount is the coercion used by aggregation: NaN and ±Inf become 0
// and the sign is dropped, since the sign is implied by the record type.
func SanitizeAmount(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Abs(f)
}
