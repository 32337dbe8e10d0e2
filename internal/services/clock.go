package services

import (
	"time"

	"trackme/internal/core"
)

// Clock yields "today" in the configured timezone.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{now: time.Now, loc: loc}
}

// FixedClock always reports t. Used by tests and reports.
func FixedClock(t time.Time) Clock {
	return Clock{now: func() time.Time { return t }, loc: t.Location()}
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Today is the calendar day of Now in the clock's location.
func (c Clock) Today() core.Date {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(c.Now().In(loc))
}
