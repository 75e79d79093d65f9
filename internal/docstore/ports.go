// Package docstore defines the ports to the household document store.
//
// The store is the single source of truth: clients never mutate their local
// mirror directly, they write here and converge through change notifications
// (see internal/feed and internal/ledger).
package docstore

import (
	"context"
	"errors"

	"famledger/internal/core"
)

var (
	ErrNotFound = errors.New("document not found")
)

// Ports for the store adapters. Kept small and composable; adapters satisfy
// whichever subset a caller needs.
type (
	// ExpenseReader returns the complete current expense set for a family,
	// ordered by date descending with ties broken by store-assigned order
	// (creation time, newest first). Consumers replace their mirror with
	// the returned slice wholesale.
	ExpenseReader interface {
		ListExpenses(ctx context.Context, familyID string) ([]core.Expense, error)
	}

	ExpenseWriter interface {
		// AddExpense stores a new record and returns its assigned ID.
		AddExpense(ctx context.Context, familyID string, e core.Expense) (string, error)
		// UpdateExpense replaces the stored fields of an existing record.
		UpdateExpense(ctx context.Context, familyID, expenseID string, e core.Expense) error
		DeleteExpense(ctx context.Context, familyID, expenseID string) error
	}

	TaxonomyReader interface {
		GetTaxonomy(ctx context.Context, familyID string) (core.Taxonomy, error)
	}

	// TaxonomyWriter replaces the whole taxonomy document. There is no
	// field-level patch: concurrent replaces race and the last writer wins
	// silently. That matches the product's documented behavior.
	TaxonomyWriter interface {
		ReplaceTaxonomy(ctx context.Context, familyID string, t core.Taxonomy) error
	}

	// FamilyStore manages households and their member profiles.
	FamilyStore interface {
		CreateFamily(ctx context.Context, name, createdBy string) (core.Family, error)
		GetFamily(ctx context.Context, familyID string) (core.Family, error)
		PutUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, userID string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
	}
)

// Store is the full surface a backend adapter provides.
type Store interface {
	ExpenseReader
	ExpenseWriter
	TaxonomyReader
	TaxonomyWriter
	FamilyStore
}
