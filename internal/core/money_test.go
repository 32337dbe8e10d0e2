package core

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr error
	}{
		{"9.99", 9.99, nil},
		{"9,99", 9.99, nil},
		{" 15 ", 15, nil},
		{"0", 0, nil},
		{"", 0, ErrMissingAmount},
		{"-1", 0, ErrInvalidAmount},
		{"abc", 0, ErrInvalidAmount},
		{"1.2.3", 0, ErrInvalidAmount},
		{"NaN", 0, ErrInvalidAmount},
		{"Inf", 0, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseAmount(%q) err = %v, want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeAmount(t *testing.T) {
	if SanitizeAmount(math.NaN()) != 0 || SanitizeAmount(math.Inf(1)) != 0 || SanitizeAmount(math.Inf(-1)) != 0 {
		t.Fatal("non-finite values must become zero")
	}
	if SanitizeAmount(-4.5) != 4.5 {
		t.Fatal("sign should be dropped")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   string
	}{
		{"15.49", "USD", "$15.49"},
		{"10", "EUR", "€10"},
		{"1234.5", "GBP", "£1,234.5"},
		{"0.005", "INR", "₹0.01"},
		{"-20", "USD", "-$20"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatMoney(decimal.RequireFromString(tt.amount), tt.code); got != tt.want {
				t.Fatalf("FormatMoney(%s, %s) = %q, want %q", tt.amount, tt.code, got, tt.want)
			}
		})
	}
	if got := FormatPrice(math.NaN(), "USD"); got != "$0" {
		t.Fatalf("FormatPrice(NaN) = %q", got)
	}
}
