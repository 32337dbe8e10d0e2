package core

import "testing"

func TestAddMonths(t *testing.T) {
	tests := []struct {
		from   string
		months int
		want   string
	}{
		{"2024-01-15", 1, "2024-02-15"},
		{"2024-01-31", 1, "2024-03-02"},
		{"2023-01-31", 1, "2023-03-03"},
		{"2024-11-30", 3, "2025-03-02"},
		{"2024-02-29", 12, "2025-03-01"},
		{"2024-06-01", 36, "2027-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			got := AddMonths(ParseDateOrEpoch(tt.from), tt.months).String()
			if got != tt.want {
				t.Fatalf("AddMonths(%s, %d) = %s, want %s", tt.from, tt.months, got, tt.want)
			}
		})
	}
}

func TestAddMonthsStringKeepsMalformedInput(t *testing.T) {
	if got := AddMonthsString("soon", 1); got != "soon" {
		t.Fatalf("got %q", got)
	}
	if got := AddMonthsString("2024-05-10", 2); got != "2024-07-10" {
		t.Fatalf("got %q", got)
	}
}

func TestMonthsFor(t *testing.T) {
	tests := map[string]int{
		"1 Month":   1,
		"3 Months":  3,
		"11 Months": 11,
		"1 Year":    12,
		"2 Years":   24,
		"3 Years":   36,
		"":          1,
		"Weekly":    1,
	}
	for label, want := range tests {
		if got := MonthsFor(label); got != want {
			t.Errorf("MonthsFor(%q) = %d, want %d", label, got, want)
		}
	}
}
