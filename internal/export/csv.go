// Package export renders the expense ledger for external consumption: CSV
// downloads and the Google Sheets mirror.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"famledger/internal/core"
)

// Variant selects the last CSV column. Households that track who paid export
// the member name instead of the free-text description.
type Variant string

const (
	VariantDescription Variant = "description"
	VariantAddedBy     Variant = "added_by"
)

// Filename returns the canonical download name for an export generated today.
func Filename(now time.Time) string {
	return fmt.Sprintf("expenses_%s.csv", now.Format("2006-01-02"))
}

type descriptionRow struct {
	Date         string `csv:"Date"`
	MainCategory string `csv:"Main Category"`
	SubCategory  string `csv:"Sub Category"`
	Amount       string `csv:"Amount"`
	PaymentMode  string `csv:"Payment Mode"`
	Description  string `csv:"Description"`
}

type addedByRow struct {
	Date         string `csv:"Date"`
	MainCategory string `csv:"Main Category"`
	SubCategory  string `csv:"Sub Category"`
	Amount       string `csv:"Amount"`
	PaymentMode  string `csv:"Payment Mode"`
	AddedBy      string `csv:"Added By"`
}

// MarshalCSV renders the expenses in their given order with amounts formatted
// to two decimals.
func MarshalCSV(expenses []core.Expense, variant Variant) (string, error) {
	switch variant {
	case VariantAddedBy:
		rows := make([]addedByRow, len(expenses))
		for i, e := range expenses {
			rows[i] = addedByRow{
				Date:         e.Date.String(),
				MainCategory: e.MainCategory,
				SubCategory:  e.SubCategory,
				Amount:       e.Amount.TwoDecimals(),
				PaymentMode:  e.PaymentMode,
				AddedBy:      e.AddedBy,
			}
		}
		return gocsv.MarshalString(&rows)
	default:
		rows := make([]descriptionRow, len(expenses))
		for i, e := range expenses {
			rows[i] = descriptionRow{
				Date:         e.Date.String(),
				MainCategory: e.MainCategory,
				SubCategory:  e.SubCategory,
				Amount:       e.Amount.TwoDecimals(),
				PaymentMode:  e.PaymentMode,
				Description:  e.Description,
			}
		}
		return gocsv.MarshalString(&rows)
	}
}

// UnmarshalCSV parses an export back into expense records. IDs and creation
// times are not part of the wire format and come back zero.
func UnmarshalCSV(data string, variant Variant) ([]core.Expense, error) {
	if variant == VariantAddedBy {
		var rows []addedByRow
		if err := gocsv.UnmarshalString(data, &rows); err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		out := make([]core.Expense, 0, len(rows))
		for _, r := range rows {
			e, err := rowToExpense(r.Date, r.MainCategory, r.SubCategory, r.Amount, r.PaymentMode)
			if err != nil {
				return nil, err
			}
			e.AddedBy = r.AddedBy
			out = append(out, e)
		}
		return out, nil
	}

	var rows []descriptionRow
	if err := gocsv.UnmarshalString(data, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	out := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		e, err := rowToExpense(r.Date, r.MainCategory, r.SubCategory, r.Amount, r.PaymentMode)
		if err != nil {
			return nil, err
		}
		e.Description = r.Description
		out = append(out, e)
	}
	return out, nil
}

func rowToExpense(date, main, sub, amount, payment string) (core.Expense, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("row date %q: %w", date, err)
	}
	cents, err := parseTwoDecimals(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("row amount %q: %w", amount, err)
	}
	return core.Expense{
		Date:         d,
		MainCategory: main,
		SubCategory:  sub,
		Amount:       core.Money{Cents: cents},
		PaymentMode:  payment,
	}, nil
}

func parseTwoDecimals(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, ok := strings.Cut(s, ".")
	if !ok {
		frac = "00"
	}
	if len(frac) != 2 {
		return 0, fmt.Errorf("expected two decimals, got %q", s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return w*100 + f, nil
}
