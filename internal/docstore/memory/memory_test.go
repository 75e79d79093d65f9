package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"famledger/internal/core"
	"famledger/internal/docstore"
	"famledger/internal/feed"
)

func TestCreateFamilySeedsDefaultTaxonomy(t *testing.T) {
	ctx := context.Background()
	s := New(core.ShapeFlat, nil)

	f, err := s.CreateFamily(ctx, "Rossi", "user-1")
	if err != nil {
		t.Fatalf("CreateFamily() error = %v", err)
	}
	if f.ID == "" {
		t.Fatal("CreateFamily() assigned empty ID")
	}

	tax, err := s.GetTaxonomy(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetTaxonomy() error = %v", err)
	}
	if len(tax.Main) == 0 || len(tax.Payment) == 0 {
		t.Errorf("expected seeded taxonomy, got main=%d payment=%d", len(tax.Main), len(tax.Payment))
	}
}

func TestListExpensesOrdering(t *testing.T) {
	ctx := context.Background()
	s := New(core.ShapeFlat, nil)

	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	f, _ := s.CreateFamily(ctx, "Rossi", "user-1")

	add := func(date core.Date) string {
		t.Helper()
		id, err := s.AddExpense(ctx, f.ID, core.Expense{
			Date:         date,
			MainCategory: "Food",
			SubCategory:  "Groceries",
			Amount:       core.Money{Cents: 1000},
			PaymentMode:  "Cash",
		})
		if err != nil {
			t.Fatalf("AddExpense() error = %v", err)
		}
		return id
	}

	older := add(core.NewDate(2025, 1, 5))
	newestFirst := add(core.NewDate(2025, 1, 8))
	newestSecond := add(core.NewDate(2025, 1, 8))

	got, err := s.ListExpenses(ctx, f.ID)
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListExpenses() returned %d expenses, want 3", len(got))
	}
	// Date descending, same-date ties newest creation first.
	wantOrder := []string{newestSecond, newestFirst, older}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestWritesPublishNotifications(t *testing.T) {
	ctx := context.Background()
	bus := feed.NewBus()
	var seen []feed.Notification
	bus.Subscribe(func(_ context.Context, n feed.Notification) error {
		seen = append(seen, n)
		return nil
	})
	s := New(core.ShapeFlat, bus)

	f, _ := s.CreateFamily(ctx, "Rossi", "user-1")
	id, err := s.AddExpense(ctx, f.ID, core.Expense{
		Date:         core.NewDate(2025, 1, 5),
		MainCategory: "Food",
		SubCategory:  "Groceries",
		Amount:       core.Money{Cents: 500},
		PaymentMode:  "Cash",
	})
	if err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	if err := s.DeleteExpense(ctx, f.ID, id); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("got %d notifications, want 3 (create family, add, delete)", len(seen))
	}
	if seen[0].Collection != feed.CollectionCategories {
		t.Errorf("first notification collection = %s, want %s", seen[0].Collection, feed.CollectionCategories)
	}
	for _, n := range seen[1:] {
		if n.Collection != feed.CollectionExpenses {
			t.Errorf("notification collection = %s, want %s", n.Collection, feed.CollectionExpenses)
		}
		if n.FamilyID != f.ID {
			t.Errorf("notification family = %s, want %s", n.FamilyID, f.ID)
		}
	}
}

func TestAddExpenseRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := New(core.ShapeFlat, nil)
	f, _ := s.CreateFamily(ctx, "Rossi", "user-1")

	_, err := s.AddExpense(ctx, f.ID, core.Expense{
		Date:         core.NewDate(2025, 1, 5),
		MainCategory: "Food",
		SubCategory:  "Groceries",
		Amount:       core.Money{Cents: 0},
		PaymentMode:  "Cash",
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("AddExpense() error = %v, want ErrInvalidAmount", err)
	}
}

func TestUpdateAndDeleteUnknownExpense(t *testing.T) {
	ctx := context.Background()
	s := New(core.ShapeFlat, nil)
	f, _ := s.CreateFamily(ctx, "Rossi", "user-1")

	valid := core.Expense{
		Date:         core.NewDate(2025, 1, 5),
		MainCategory: "Food",
		SubCategory:  "Groceries",
		Amount:       core.Money{Cents: 100},
		PaymentMode:  "Cash",
	}
	if err := s.UpdateExpense(ctx, f.ID, "missing", valid); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("UpdateExpense() error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteExpense(ctx, f.ID, "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("DeleteExpense() error = %v, want ErrNotFound", err)
	}
}

func TestReplaceTaxonomyLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := New(core.ShapeFlat, nil)
	f, _ := s.CreateFamily(ctx, "Rossi", "user-1")

	first, _ := s.GetTaxonomy(ctx, f.ID)
	if err := first.Add(core.KindMain, "Garden", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	second, _ := s.GetTaxonomy(ctx, f.ID)
	if err := second.Add(core.KindMain, "Pets", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.ReplaceTaxonomy(ctx, f.ID, first); err != nil {
		t.Fatalf("ReplaceTaxonomy() error = %v", err)
	}
	if err := s.ReplaceTaxonomy(ctx, f.ID, second); err != nil {
		t.Fatalf("ReplaceTaxonomy() error = %v", err)
	}

	got, _ := s.GetTaxonomy(ctx, f.ID)
	if got.Contains(core.KindMain, "Garden") {
		t.Error("first replace survived; whole-document replace should drop it")
	}
	if !got.Contains(core.KindMain, "Pets") {
		t.Error("second replace did not win")
	}
}
