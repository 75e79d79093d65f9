package core

import (
	"errors"
	"strings"
)

// TaxonomyShape selects between the two historical taxonomy layouts: a flat
// sub-category list shared by every main category, or sub-categories nested
// under their main category. Which one is canonical is a product decision
// that has not been made; both remain supported behind the same type.
type TaxonomyShape string

const (
	ShapeFlat   TaxonomyShape = "flat"
	ShapeNested TaxonomyShape = "nested"
)

// CategoryKind names one of the three independent lists.
type CategoryKind string

const (
	KindMain    CategoryKind = "main"
	KindSub     CategoryKind = "sub"
	KindPayment CategoryKind = "payment"
)

var (
	ErrDuplicateCategory = errors.New("category already exists")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownKind       = errors.New("unknown category kind")
)

// Taxonomy holds the household's three category lists. Entry order is
// insertion order; uniqueness within a list is case-insensitive.
type Taxonomy struct {
	Shape   TaxonomyShape
	Main    []string
	Sub     []string            // flat shape only
	Nested  map[string][]string // nested shape only, keyed by main category
	Payment []string
}

// DefaultTaxonomy returns the seed set written at family creation.
func DefaultTaxonomy(shape TaxonomyShape) Taxonomy {
	t := Taxonomy{
		Shape: shape,
		Main:  []string{"Food", "Transport", "Shopping", "Bills", "Entertainment", "Healthcare", "Education"},
		Payment: []string{
			"Cash", "Credit Card", "Debit Card", "UPI", "Net Banking", "Mobile Wallet",
		},
	}
	subs := map[string][]string{
		"Food":          {"Groceries", "Dining Out", "Snacks", "Coffee/Tea"},
		"Transport":     {"Fuel", "Public Transport", "Taxi/Uber", "Car Maintenance"},
		"Shopping":      {"Clothing", "Electronics", "Household Items", "Personal Care"},
		"Bills":         {"Electricity", "Internet", "Phone", "Water", "Gas"},
		"Entertainment": {"Movies", "Games", "Sports", "Books"},
		"Healthcare":    {"Doctor Visit", "Medicines", "Health Insurance"},
		"Education":     {"Course Fees", "Supplies"},
	}
	if shape == ShapeNested {
		t.Nested = subs
		return t
	}
	for _, main := range t.Main {
		t.Sub = append(t.Sub, subs[main]...)
	}
	return t
}

// SubcategoriesFor lists the sub-categories applicable to a main category:
// the flat shape returns all of them unconditionally, the nested shape only
// the associated subset.
func (t Taxonomy) SubcategoriesFor(main string) []string {
	if t.Shape == ShapeNested {
		return append([]string(nil), t.Nested[main]...)
	}
	return append([]string(nil), t.Sub...)
}

// AllSubcategories flattens the sub-category lists regardless of shape.
func (t Taxonomy) AllSubcategories() []string {
	if t.Shape != ShapeNested {
		return append([]string(nil), t.Sub...)
	}
	var out []string
	for _, main := range t.Main {
		out = append(out, t.Nested[main]...)
	}
	return out
}

func containsFold(list []string, name string) bool {
	for _, v := range list {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

func removeExact(list []string, name string) ([]string, bool) {
	out := list[:0:0]
	found := false
	for _, v := range list {
		if v == name {
			found = true
			continue
		}
		out = append(out, v)
	}
	return out, found
}

// Add appends a new entry after trimming whitespace. A case-insensitive
// duplicate within the same list fails with ErrDuplicateCategory and leaves
// the taxonomy untouched. For the nested shape, adding a sub-category takes
// the owning main category as parent; the flat shape ignores parent.
func (t *Taxonomy) Add(kind CategoryKind, name, parent string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	switch kind {
	case KindMain:
		if containsFold(t.Main, name) {
			return ErrDuplicateCategory
		}
		t.Main = append(t.Main, name)
		if t.Shape == ShapeNested {
			if t.Nested == nil {
				t.Nested = map[string][]string{}
			}
			t.Nested[name] = []string{}
		}
	case KindSub:
		if t.Shape == ShapeNested {
			if !containsFold(t.Main, parent) {
				return ErrUnknownCategory
			}
			if containsFold(t.Nested[parent], name) {
				return ErrDuplicateCategory
			}
			if t.Nested == nil {
				t.Nested = map[string][]string{}
			}
			t.Nested[parent] = append(t.Nested[parent], name)
			return nil
		}
		if containsFold(t.Sub, name) {
			return ErrDuplicateCategory
		}
		t.Sub = append(t.Sub, name)
	case KindPayment:
		if containsFold(t.Payment, name) {
			return ErrDuplicateCategory
		}
		t.Payment = append(t.Payment, name)
	default:
		return ErrUnknownKind
	}
	return nil
}

// Remove deletes an entry by exact name. Removing a main category in the
// nested shape drops its sub-category list with it.
func (t *Taxonomy) Remove(kind CategoryKind, name, parent string) error {
	switch kind {
	case KindMain:
		list, found := removeExact(t.Main, name)
		if !found {
			return ErrUnknownCategory
		}
		t.Main = list
		if t.Shape == ShapeNested {
			delete(t.Nested, name)
		}
	case KindSub:
		if t.Shape == ShapeNested {
			list, found := removeExact(t.Nested[parent], name)
			if !found {
				return ErrUnknownCategory
			}
			t.Nested[parent] = list
			return nil
		}
		list, found := removeExact(t.Sub, name)
		if !found {
			return ErrUnknownCategory
		}
		t.Sub = list
	case KindPayment:
		list, found := removeExact(t.Payment, name)
		if !found {
			return ErrUnknownCategory
		}
		t.Payment = list
	default:
		return ErrUnknownKind
	}
	return nil
}

// Clone returns a deep copy, used when the whole document is replaced.
func (t Taxonomy) Clone() Taxonomy {
	out := Taxonomy{
		Shape:   t.Shape,
		Main:    append([]string(nil), t.Main...),
		Sub:     append([]string(nil), t.Sub...),
		Payment: append([]string(nil), t.Payment...),
	}
	if t.Nested != nil {
		out.Nested = make(map[string][]string, len(t.Nested))
		for k, v := range t.Nested {
			out.Nested[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Contains reports whether name is present in the kind's list, matching the
// creation-time membership check for new expenses.
func (t Taxonomy) Contains(kind CategoryKind, name string) bool {
	switch kind {
	case KindMain:
		return containsFold(t.Main, name)
	case KindSub:
		return containsFold(t.AllSubcategories(), name)
	case KindPayment:
		return containsFold(t.Payment, name)
	}
	return false
}
