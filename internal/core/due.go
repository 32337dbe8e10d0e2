package core

// DueState is the display classification of a subscription.
type DueState string

const (
	StatePaid    DueState = "paid"
	StateOverdue DueState = "overdue"
	StateDueSoon DueState = "due-soon"
	StateNormal  DueState = "normal"
)

// DueSoonDays is the inclusive look-ahead window for StateDueSoon.
const DueSoonDays = 5

// Label is the badge text for the state.
func (s DueState) Label() string {
	switch s {
	case StatePaid:
		return "Paid"
	case StateOverdue:
		return "Overdue"
	case StateDueSoon:
		return "Due soon"
	}
	return ""
}

// ClassifyDue labels a due date relative to today. The paid flag wins even
// when the date has passed; the cycle reset clears it separately.
func ClassifyDue(today Date, due string, paid bool) DueState {
	if paid {
		return StatePaid
	}
	d, err := ParseDate(due)
	if err != nil {
		return StateNormal
	}
	if d.Before(today.Time) {
		return StateOverdue
	}
	if today.DaysUntil(d) <= DueSoonDays {
		return StateDueSoon
	}
	return StateNormal
}

// DueState classifies s using its effective due date.
func (s Subscription) DueState(today Date) DueState {
	return ClassifyDue(today, s.EffectiveDueDate(), s.IsPaidThisCycle)
}

// NeedsCycleReset reports whether s is still marked paid although its
// effective due date is already behind today.
func NeedsCycleReset(s Subscription, today Date) bool {
	if !s.IsPaidThisCycle {
		return false
	}
	d, err := ParseDate(s.EffectiveDueDate())
	if err != nil {
		return false
	}
	return d.Before(today.Time)
}

// MarkPaid records a payment made today and moves both the due date and the
// renewal date one interval ahead of today.
func MarkPaid(s Subscription, today Date) Subscription {
	next := AddMonths(today, MonthsFor(s.RenewalInterval)).String()
	s.IsPaidThisCycle = true
	s.LastPaidDate = today.String()
	s.NextDueDate = next
	s.RenewalDate = next
	return s
}
