package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the canonical, lexicographically sortable date form.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date with no time component.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single ledger record. ID and CreatedAt are assigned by
	// the document store, not by callers.
	Expense struct {
		ID           string
		Date         Date
		MainCategory string
		SubCategory  string
		Amount       Money
		PaymentMode  string
		Description  string
		AddedBy      string
		AddedByEmail string
		CreatedAt    time.Time
	}

	// Family is the sharing scope for one ledger and one taxonomy.
	Family struct {
		ID        string
		Name      string
		CreatedBy string
		CreatedAt time.Time
	}

	// User belongs to at most one family, recorded on the profile.
	// PasswordHash is a bcrypt hash; it never leaves the auth layer.
	User struct {
		ID           string
		Email        string
		DisplayName  string
		FamilyID     string
		FamilyName   string
		PasswordHash string
		JoinedAt     time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingDate        = errors.New("missing date")
	ErrMissingMainCat     = errors.New("missing main category")
	ErrMissingSubCat      = errors.New("missing sub category")
	ErrMissingPaymentMode = errors.New("missing payment mode")
)

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the canonical YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, errors.New("invalid date, want YYYY-MM-DD")
	}
	return Date{Time: t}, nil
}

// String returns the canonical YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// YearMonth returns the YYYY-MM prefix used for month grouping.
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the invariants enforced before any write request.
// Taxonomy membership is checked at creation time by the ledger, not here.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.MainCategory) == "" {
		return ErrMissingMainCat
	}
	if strings.TrimSpace(e.SubCategory) == "" {
		return ErrMissingSubCat
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.PaymentMode) == "" {
		return ErrMissingPaymentMode
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}
