package core

// Filter is the user's current view selection. A zero value matches every
// expense; it changes only through explicit UI actions.
type Filter struct {
	MainCategory string // exact match on the main category
	Member       string // exact match on attribution (AddedBy)
	YearMonth    string // YYYY-MM match on the date field
}

// IsZero reports whether no predicate is active.
func (f Filter) IsZero() bool {
	return f.MainCategory == "" && f.Member == "" && f.YearMonth == ""
}

// Match applies all active predicates; an absent value matches all.
func (f Filter) Match(e Expense) bool {
	if f.MainCategory != "" && e.MainCategory != f.MainCategory {
		return false
	}
	if f.Member != "" && e.AddedBy != f.Member {
		return false
	}
	if f.YearMonth != "" && e.Date.YearMonth() != f.YearMonth {
		return false
	}
	return true
}

// Apply returns the expenses matching the filter, preserving order.
func (f Filter) Apply(expenses []Expense) []Expense {
	if f.IsZero() {
		return append([]Expense(nil), expenses...)
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
