package core

import (
	"fmt"
	"strings"
)

// Period selects a window of transactions relative to "now".
type Period string

const (
	ThisMonth Period = "this-month"
	LastMonth Period = "last-month"
	ThisYear  Period = "this-year"
	AllTime   Period = "all-time"
)

// Periods lists the buckets in display order.
var Periods = []Period{ThisMonth, LastMonth, ThisYear, AllTime}

// ParsePeriod validates a bucket specifier.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ThisMonth, LastMonth, ThisYear, AllTime:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Label is the tab caption for the period.
func (p Period) Label() string {
	switch p {
	case ThisMonth:
		return "This Month"
	case LastMonth:
		return "Last Month"
	case ThisYear:
		return "This Year"
	case AllTime:
		return "All Time"
	}
	return string(p)
}

// BalanceLabel names the net figure: yearly windows read as savings.
func (p Period) BalanceLabel() string {
	if p == ThisYear {
		return "Savings"
	}
	return "Balance"
}

// Contains reports whether d falls inside the period relative to now.
func (p Period) Contains(d, now Date) bool {
	switch p {
	case AllTime:
		return true
	case ThisYear:
		return d.Year() == now.Year()
	case ThisMonth:
		return d.Year() == now.Year() && d.Month() == now.Month()
	case LastMonth:
		y, m := previousMonth(now.Year(), now.Month())
		return d.Year() == y && d.Month() == m
	}
	return false
}

// InPeriod classifies a persisted date string. Malformed input is treated
// as Epoch and so only ever matches AllTime.
func InPeriod(raw string, p Period, now Date) bool {
	return p.Contains(ParseDateOrEpoch(raw), now)
}

func previousMonth(year, month int) (int, int) {
	month--
	if month < 1 {
		return year - 1, 12
	}
	return year, month
}
