// Package sqlite is the durable document-store adapter backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"famledger/internal/core"
	"famledger/internal/docstore"
	"famledger/internal/feed"
)

type Store struct {
	db        *sql.DB
	shape     core.TaxonomyShape
	publisher feed.Publisher
}

var _ docstore.Store = (*Store)(nil)

func New(dbPath string, shape core.TaxonomyShape, publisher feed.Publisher) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, shape: shape, publisher: publisher}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) notify(ctx context.Context, familyID, collection string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, feed.NewNotification(familyID, collection)); err != nil {
		// The write already committed; a later notification re-converges.
		slog.WarnContext(ctx, "Failed to publish change notification",
			"family_id", familyID,
			"collection", collection,
			"error", err)
	}
}

func (s *Store) CreateFamily(ctx context.Context, name, createdBy string) (core.Family, error) {
	f := core.Family{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Family{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO families (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, f.CreatedBy, f.CreatedAt)
	if err != nil {
		return core.Family{}, fmt.Errorf("insert family: %w", err)
	}

	doc, err := marshalTaxonomy(core.DefaultTaxonomy(s.shape))
	if err != nil {
		return core.Family{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO taxonomies (family_id, shape, document, updated_at) VALUES (?, ?, ?, ?)`,
		f.ID, string(s.shape), doc, time.Now().UTC())
	if err != nil {
		return core.Family{}, fmt.Errorf("insert taxonomy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Family{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Family created", "family_id", f.ID, "name", f.Name)
	s.notify(ctx, f.ID, feed.CollectionCategories)
	return f, nil
}

func (s *Store) GetFamily(ctx context.Context, familyID string) (core.Family, error) {
	var f core.Family
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM families WHERE id = ?`,
		familyID).Scan(&f.ID, &f.Name, &f.CreatedBy, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Family{}, docstore.ErrNotFound
	}
	if err != nil {
		return core.Family{}, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *Store) PutUser(ctx context.Context, u core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, family_id, family_name, password_hash, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email = excluded.email,
		   display_name = excluded.display_name,
		   family_id = excluded.family_id,
		   family_name = excluded.family_name,
		   password_hash = excluded.password_hash`,
		u.ID, u.Email, u.DisplayName, u.FamilyID, u.FamilyName, u.PasswordHash, u.JoinedAt)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (core.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.getUser(ctx, `WHERE email = ? COLLATE NOCASE`, email)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	var u core.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, family_id, family_name, password_hash, joined_at
		 FROM users `+where,
		arg).Scan(&u.ID, &u.Email, &u.DisplayName, &u.FamilyID, &u.FamilyName, &u.PasswordHash, &u.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, docstore.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) AddExpense(ctx context.Context, familyID string, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}

	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, family_id, expense_date, main_category, sub_category,
		   amount_cents, payment_mode, description, added_by, added_by_email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, familyID, e.Date.String(), e.MainCategory, e.SubCategory,
		e.Amount.Cents, e.PaymentMode, e.Description, e.AddedBy, e.AddedByEmail, e.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", e.ID,
		"family_id", familyID,
		"amount_cents", e.Amount.Cents,
		"category", e.MainCategory)

	s.notify(ctx, familyID, feed.CollectionExpenses)
	return e.ID, nil
}

func (s *Store) UpdateExpense(ctx context.Context, familyID, expenseID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET expense_date = ?, main_category = ?, sub_category = ?,
		   amount_cents = ?, payment_mode = ?, description = ?
		 WHERE id = ? AND family_id = ?`,
		e.Date.String(), e.MainCategory, e.SubCategory,
		e.Amount.Cents, e.PaymentMode, e.Description,
		expenseID, familyID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docstore.ErrNotFound
	}

	s.notify(ctx, familyID, feed.CollectionExpenses)
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, familyID, expenseID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND family_id = ?`,
		expenseID, familyID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docstore.ErrNotFound
	}

	s.notify(ctx, familyID, feed.CollectionExpenses)
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, familyID string) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expense_date, main_category, sub_category, amount_cents,
		   payment_mode, description, added_by, added_by_email, created_at
		 FROM expenses
		 WHERE family_id = ?
		 ORDER BY expense_date DESC, created_at DESC`,
		familyID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		err := rows.Scan(&e.ID, &date, &e.MainCategory, &e.SubCategory, &e.Amount.Cents,
			&e.PaymentMode, &e.Description, &e.AddedBy, &e.AddedByEmail, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) GetTaxonomy(ctx context.Context, familyID string) (core.Taxonomy, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM taxonomies WHERE family_id = ?`,
		familyID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Taxonomy{}, docstore.ErrNotFound
	}
	if err != nil {
		return core.Taxonomy{}, fmt.Errorf("get taxonomy: %w", err)
	}
	return unmarshalTaxonomy([]byte(doc))
}

// ReplaceTaxonomy overwrites the stored document wholesale. Concurrent
// replaces race; the last writer wins.
func (s *Store) ReplaceTaxonomy(ctx context.Context, familyID string, t core.Taxonomy) error {
	doc, err := marshalTaxonomy(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE taxonomies SET shape = ?, document = ?, updated_at = ? WHERE family_id = ?`,
		string(t.Shape), doc, time.Now().UTC(), familyID)
	if err != nil {
		return fmt.Errorf("replace taxonomy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docstore.ErrNotFound
	}

	s.notify(ctx, familyID, feed.CollectionCategories)
	return nil
}

// taxonomyDoc is the stored JSON form of a taxonomy.
type taxonomyDoc struct {
	Shape   string              `json:"shape"`
	Main    []string            `json:"main"`
	Sub     []string            `json:"sub,omitempty"`
	Nested  map[string][]string `json:"nested,omitempty"`
	Payment []string            `json:"payment"`
}

func marshalTaxonomy(t core.Taxonomy) (string, error) {
	doc, err := json.Marshal(taxonomyDoc{
		Shape:   string(t.Shape),
		Main:    t.Main,
		Sub:     t.Sub,
		Nested:  t.Nested,
		Payment: t.Payment,
	})
	if err != nil {
		return "", fmt.Errorf("marshal taxonomy: %w", err)
	}
	return string(doc), nil
}

func unmarshalTaxonomy(data []byte) (core.Taxonomy, error) {
	var doc taxonomyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.Taxonomy{}, fmt.Errorf("unmarshal taxonomy: %w", err)
	}
	return core.Taxonomy{
		Shape:   core.TaxonomyShape(doc.Shape),
		Main:    doc.Main,
		Sub:     doc.Sub,
		Nested:  doc.Nested,
		Payment: doc.Payment,
	}, nil
}
