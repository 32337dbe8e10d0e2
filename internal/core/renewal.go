package core

// RenewalCycle maps a stored renewalInterval label to a month count.
type RenewalCycle struct {
	Label  string
	Months int
}

// RenewalCycles is the fixed set of intervals offered to users.
var RenewalCycles = []RenewalCycle{
	{Label: "1 Month", Months: 1},
	{Label: "2 Months", Months: 2},
	{Label: "3 Months", Months: 3},
	{Label: "4 Months", Months: 4},
	{Label: "5 Months", Months: 5},
	{Label: "6 Months", Months: 6},
	{Label: "11 Months", Months: 11},
	{Label: "1 Year", Months: 12},
	{Label: "2 Years", Months: 24},
	{Label: "3 Years", Months: 36},
}

// LookupRenewalCycle finds a cycle by its exact label.
func LookupRenewalCycle(label string) (RenewalCycle, bool) {
	for _, c := range RenewalCycles {
		if c.Label == label {
			return c, true
		}
	}
	return RenewalCycle{}, false
}

// MonthsFor returns the month count for label; unknown labels count as 1.
func MonthsFor(label string) int {
	if c, ok := LookupRenewalCycle(label); ok {
		return c.Months
	}
	return 1
}

// AddMonths advances d by months using plain calendar normalisation:
// Jan 31 + 1 month lands in early March rather than on Feb 28/29.
func AddMonths(d Date, months int) Date {
	return Date{Time: d.AddDate(0, months, 0)}
}

// AddMonthsString is AddMonths over the persisted form. Input that does not
// parse is returned unchanged.
func AddMonthsString(s string, months int) string {
	d, err := ParseDate(s)
	if err != nil {
		return s
	}
	return AddMonths(d, months).String()
}
