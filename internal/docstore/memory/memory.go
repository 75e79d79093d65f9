// Package memory is an in-process document store used by tests and the
// local-only deployment. It applies the same ordering and notification
// contract as the sqlite adapter.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"famledger/internal/core"
	"famledger/internal/docstore"
	"famledger/internal/feed"
)

type Store struct {
	mu         sync.Mutex
	families   map[string]core.Family
	users      map[string]core.User
	expenses   map[string][]core.Expense // keyed by family ID
	taxonomies map[string]core.Taxonomy  // keyed by family ID
	shape      core.TaxonomyShape
	publisher  feed.Publisher
	now        func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store. Writes publish change notifications through
// the given publisher; pass nil to disable notifications.
func New(shape core.TaxonomyShape, publisher feed.Publisher) *Store {
	return &Store{
		families:   map[string]core.Family{},
		users:      map[string]core.User{},
		expenses:   map[string][]core.Expense{},
		taxonomies: map[string]core.Taxonomy{},
		shape:      shape,
		publisher:  publisher,
		now:        time.Now,
	}
}

// SetClock overrides the creation-timestamp source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) notify(ctx context.Context, familyID, collection string) {
	if s.publisher == nil {
		return
	}
	// Notification failures are not surfaced to the writer: the write
	// itself succeeded and a later notification re-converges the mirror.
	_ = s.publisher.Publish(ctx, feed.NewNotification(familyID, collection))
}

func (s *Store) CreateFamily(ctx context.Context, name, createdBy string) (core.Family, error) {
	s.mu.Lock()
	f := core.Family{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: s.now(),
	}
	s.families[f.ID] = f
	s.taxonomies[f.ID] = core.DefaultTaxonomy(s.shape)
	s.mu.Unlock()

	s.notify(ctx, f.ID, feed.CollectionCategories)
	return f, nil
}

func (s *Store) GetFamily(_ context.Context, familyID string) (core.Family, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[familyID]
	if !ok {
		return core.Family{}, docstore.ErrNotFound
	}
	return f, nil
}

func (s *Store) PutUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.User{}, docstore.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, docstore.ErrNotFound
}

func (s *Store) AddExpense(ctx context.Context, familyID string, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	e.ID = uuid.NewString()
	e.CreatedAt = s.now()
	s.expenses[familyID] = append(s.expenses[familyID], e)
	s.mu.Unlock()

	s.notify(ctx, familyID, feed.CollectionExpenses)
	return e.ID, nil
}

func (s *Store) UpdateExpense(ctx context.Context, familyID, expenseID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	list := s.expenses[familyID]
	found := false
	for i := range list {
		if list[i].ID == expenseID {
			e.ID = expenseID
			e.CreatedAt = list[i].CreatedAt
			list[i] = e
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return docstore.ErrNotFound
	}

	s.notify(ctx, familyID, feed.CollectionExpenses)
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, familyID, expenseID string) error {
	s.mu.Lock()
	list := s.expenses[familyID]
	found := false
	out := list[:0]
	for _, e := range list {
		if e.ID == expenseID {
			found = true
			continue
		}
		out = append(out, e)
	}
	s.expenses[familyID] = out
	s.mu.Unlock()
	if !found {
		return docstore.ErrNotFound
	}

	s.notify(ctx, familyID, feed.CollectionExpenses)
	return nil
}

// ListExpenses returns the full set ordered by date descending, ties broken
// by creation time descending (the store-assigned feed order).
func (s *Store) ListExpenses(_ context.Context, familyID string) ([]core.Expense, error) {
	s.mu.Lock()
	list := append([]core.Expense(nil), s.expenses[familyID]...)
	s.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool {
		di, dj := list[i].Date.String(), list[j].Date.String()
		if di != dj {
			return di > dj
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *Store) GetTaxonomy(_ context.Context, familyID string) (core.Taxonomy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.taxonomies[familyID]
	if !ok {
		return core.Taxonomy{}, docstore.ErrNotFound
	}
	return t.Clone(), nil
}

// ReplaceTaxonomy overwrites the whole taxonomy document. Two sessions
// replacing concurrently race; the later call wins.
func (s *Store) ReplaceTaxonomy(ctx context.Context, familyID string, t core.Taxonomy) error {
	s.mu.Lock()
	if _, ok := s.taxonomies[familyID]; !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	s.taxonomies[familyID] = t.Clone()
	s.mu.Unlock()

	s.notify(ctx, familyID, feed.CollectionCategories)
	return nil
}
