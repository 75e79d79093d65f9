// Package ledger keeps a per-family mirror of the document store and
// reconciles it on change notifications.
//
// The mirror is read-only for callers: mutations validate locally, write
// through the store ports, and the mirror only changes when the resulting
// notification arrives. There is no optimistic apply, so a dropped write is
// simply never shown.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"famledger/internal/core"
	"famledger/internal/docstore"
	"famledger/internal/feed"
)

var (
	// ErrOffline is returned when a mutation is attempted without
	// connectivity. Validation has already run at that point.
	ErrOffline = errors.New("offline")

	// ErrConfirmationRequired gates destructive operations. Callers pass
	// Confirm to proceed.
	ErrConfirmationRequired = errors.New("confirmation required")

	ErrUnknownCategory = errors.New("category not in taxonomy")
)

// Confirm is the caller's explicit acknowledgement of a destructive action.
type Confirm bool

// RenderHook receives a fresh projection after every mirror change.
type RenderHook func(Snapshot)

// Snapshot is one consistent view of the mirror handed to render hooks.
type Snapshot struct {
	Expenses   []core.Expense
	Taxonomy   core.Taxonomy
	Filter     core.Filter
	Projection core.Projection
	Status     SyncStatus
}

// LedgerStore is the slice of the document store a session needs. Family and
// user management stay in the auth layer.
type LedgerStore interface {
	docstore.ExpenseReader
	docstore.ExpenseWriter
	docstore.TaxonomyReader
	docstore.TaxonomyWriter
}

// Session is the reconciliation controller for one signed-in family.
type Session struct {
	familyID string
	store    LedgerStore
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	expenses []core.Expense
	taxonomy core.Taxonomy
	filter   core.Filter
	status   SyncStatus
	hooks    []RenderHook
}

// NewSession creates a controller with an empty mirror. Call Reconcile (or
// deliver a notification) to load the first snapshot.
func NewSession(familyID string, store LedgerStore, logger *slog.Logger) *Session {
	return &Session{
		familyID: familyID,
		store:    store,
		now:      time.Now,
		logger:   logger,
		status:   StatusSyncing,
	}
}

// SetClock overrides the projection clock, for tests.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// OnRender registers a hook invoked after every mirror change.
func (s *Session) OnRender(h RenderHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// HandleNotification is the feed.Handler for this session. Notifications for
// other families are ignored. Every matching notification triggers a full
// reload, so duplicates and reordering are harmless.
func (s *Session) HandleNotification(ctx context.Context, n feed.Notification) error {
	if n.FamilyID != s.familyID {
		return nil
	}
	return s.Reconcile(ctx)
}

// Reconcile replaces the whole mirror from the store and settles the sync
// status. The two reads are not transactional; a racing write just schedules
// another reconcile.
func (s *Session) Reconcile(ctx context.Context) error {
	expenses, err := s.store.ListExpenses(ctx, s.familyID)
	if err != nil {
		s.fail(ctx, "list expenses", err)
		return fmt.Errorf("list expenses: %w", err)
	}
	taxonomy, err := s.store.GetTaxonomy(ctx, s.familyID)
	if err != nil {
		s.fail(ctx, "get taxonomy", err)
		return fmt.Errorf("get taxonomy: %w", err)
	}

	s.mu.Lock()
	s.expenses = expenses
	s.taxonomy = taxonomy
	s.status = transition(s.status, eventSettled)
	snap := s.snapshotLocked()
	hooks := append([]RenderHook(nil), s.hooks...)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Mirror reconciled",
		"family_id", s.familyID,
		"expenses", len(expenses),
		"sync_status", string(snap.Status))

	for _, h := range hooks {
		h(snap)
	}
	return nil
}

func (s *Session) fail(ctx context.Context, op string, err error) {
	s.mu.Lock()
	s.status = transition(s.status, eventWriteFailed)
	s.mu.Unlock()
	s.logger.ErrorContext(ctx, "Reconcile failed",
		"family_id", s.familyID,
		"operation", op,
		"error", err)
}

// SetOnline records a connectivity change. Coming back online marks the
// session syncing until the next reconcile settles it.
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	if online {
		s.status = transition(s.status, eventWentOnline)
	} else {
		s.status = transition(s.status, eventWentOffline)
	}
	s.mu.Unlock()
}

// Status returns the current sync status.
func (s *Session) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// AddExpense validates the record against the mirror's taxonomy and writes it
// through the store. The mirror is untouched until the notification lands.
func (s *Session) AddExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	taxonomy := s.taxonomy
	offline := s.status == StatusOffline
	s.mu.Unlock()

	if !taxonomy.Contains(core.KindMain, e.MainCategory) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, e.MainCategory)
	}
	if !containsString(taxonomy.SubcategoriesFor(e.MainCategory), e.SubCategory) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, e.SubCategory)
	}
	if offline {
		return "", ErrOffline
	}

	s.startWrite()
	id, err := s.store.AddExpense(ctx, s.familyID, e)
	if err != nil {
		s.writeFailed(ctx, "add expense", err)
		return "", err
	}
	return id, nil
}

// UpdateExpense validates and writes through; same contract as AddExpense,
// so an edit cannot move a record outside the taxonomy either.
func (s *Session) UpdateExpense(ctx context.Context, expenseID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	taxonomy := s.taxonomy
	offline := s.status == StatusOffline
	s.mu.Unlock()

	if !taxonomy.Contains(core.KindMain, e.MainCategory) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, e.MainCategory)
	}
	if !containsString(taxonomy.SubcategoriesFor(e.MainCategory), e.SubCategory) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, e.SubCategory)
	}
	if offline {
		return ErrOffline
	}

	s.startWrite()
	if err := s.store.UpdateExpense(ctx, s.familyID, expenseID, e); err != nil {
		s.writeFailed(ctx, "update expense", err)
		return err
	}
	return nil
}

// DeleteExpense issues no store call without an explicit confirmation.
func (s *Session) DeleteExpense(ctx context.Context, expenseID string, confirm Confirm) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	if s.Status() == StatusOffline {
		return ErrOffline
	}

	s.startWrite()
	if err := s.store.DeleteExpense(ctx, s.familyID, expenseID); err != nil {
		s.writeFailed(ctx, "delete expense", err)
		return err
	}
	return nil
}

// AddCategory extends the taxonomy and replaces the stored document.
func (s *Session) AddCategory(ctx context.Context, kind core.CategoryKind, name, parent string) error {
	s.mu.Lock()
	taxonomy := s.taxonomy.Clone()
	offline := s.status == StatusOffline
	s.mu.Unlock()

	if err := taxonomy.Add(kind, name, parent); err != nil {
		return err
	}
	if offline {
		return ErrOffline
	}

	s.startWrite()
	if err := s.store.ReplaceTaxonomy(ctx, s.familyID, taxonomy); err != nil {
		s.writeFailed(ctx, "replace taxonomy", err)
		return err
	}
	return nil
}

// RemoveCategory drops a category; confirmation-gated like deletes.
func (s *Session) RemoveCategory(ctx context.Context, kind core.CategoryKind, name, parent string, confirm Confirm) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	s.mu.Lock()
	taxonomy := s.taxonomy.Clone()
	offline := s.status == StatusOffline
	s.mu.Unlock()

	if err := taxonomy.Remove(kind, name, parent); err != nil {
		return err
	}
	if offline {
		return ErrOffline
	}

	s.startWrite()
	if err := s.store.ReplaceTaxonomy(ctx, s.familyID, taxonomy); err != nil {
		s.writeFailed(ctx, "replace taxonomy", err)
		return err
	}
	return nil
}

// SetFilter replaces the active filter and re-renders from the mirror.
func (s *Session) SetFilter(f core.Filter) {
	s.mu.Lock()
	s.filter = f
	snap := s.snapshotLocked()
	hooks := append([]RenderHook(nil), s.hooks...)
	s.mu.Unlock()

	for _, h := range hooks {
		h(snap)
	}
}

// ResetFilter clears every filter dimension.
func (s *Session) ResetFilter() {
	s.SetFilter(core.Filter{})
}

// Filter returns the active filter.
func (s *Session) Filter() core.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Snapshot returns a consistent view of the mirror.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	expenses := append([]core.Expense(nil), s.expenses...)
	return Snapshot{
		Expenses:   expenses,
		Taxonomy:   s.taxonomy.Clone(),
		Filter:     s.filter,
		Projection: core.Project(expenses, s.filter, s.now()),
		Status:     s.status,
	}
}

func (s *Session) startWrite() {
	s.mu.Lock()
	s.status = transition(s.status, eventWriteStarted)
	s.mu.Unlock()
}

func (s *Session) writeFailed(ctx context.Context, op string, err error) {
	s.mu.Lock()
	s.status = transition(s.status, eventWriteFailed)
	s.mu.Unlock()
	s.logger.ErrorContext(ctx, "Write failed",
		"family_id", s.familyID,
		"operation", op,
		"error", err)
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
