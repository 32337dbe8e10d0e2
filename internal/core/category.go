package core

// IncomeCategories and ExpenseCategories are the fixed per-type choices.
var (
	IncomeCategories = []string{
		"Salary",
		"Freelance",
		"Investment",
		"Gift",
		"Other",
	}

	ExpenseCategories = []string{
		"Food",
		"Transport",
		"Bills",
		"Shopping",
		"Subscription",
		"Health",
		"Other",
	}
)

// CategoriesFor returns the categories allowed for t.
func CategoriesFor(t TransactionType) []string {
	switch t {
	case Income:
		return IncomeCategories
	case Expense:
		return ExpenseCategories
	}
	return nil
}

// IsCategory reports whether category belongs to t's enumeration.
func IsCategory(t TransactionType, category string) bool {
	for _, c := range CategoriesFor(t) {
		if c == category {
			return true
		}
	}
	return false
}
