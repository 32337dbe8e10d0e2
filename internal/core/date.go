package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the persisted calendar date format.
const DateLayout = "2006-01-02"

// Date is a calendar day at midnight UTC.
type Date struct {
	time.Time
}

// Epoch is the sentinel used for dates that cannot be parsed. It sits far
// enough in the past to never land in a relative bucket.
var Epoch = Date{Time: time.Unix(0, 0).UTC()}

// NewDate creates a new Date from year, month, day. Out of range values are
// normalised the same way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD, optionally followed by a time part
// ("2024-03-01T10:00:00Z", "2024-03-01 10:00"). Only the calendar day is kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDate
	}
	if len(s) > len(DateLayout) {
		switch s[len(DateLayout)] {
		case 'T', ' ':
			s = s[:len(DateLayout)]
		default:
			return Date{}, ErrInvalidDate
		}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, errors.Join(ErrInvalidDate, err)
	}
	return Date{Time: t}, nil
}

// ParseDateOrEpoch never fails: empty or malformed input maps to Epoch.
func ParseDateOrEpoch(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Epoch
	}
	return d
}

// String returns the YYYY-MM-DD form, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Display formats the date for humans; missing and sentinel dates show "—".
func (d Date) Display() string {
	if d.IsZero() || d.Equal(Epoch.Time) {
		return "—"
	}
	return d.Format("Jan 2, 2006")
}

// DaysUntil returns the whole number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// DisplayDate formats a persisted date string, "—" when it is missing.
// Unparseable non-empty values are shown as-is.
func DisplayDate(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	d, err := ParseDate(s)
	if err != nil {
		return s
	}
	return d.Display()
}
