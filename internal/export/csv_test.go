package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famledger/internal/core"
)

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{
			Date:         core.NewDate(2025, 1, 9),
			MainCategory: "Transport",
			SubCategory:  "Fuel",
			Amount:       core.Money{Cents: 4550},
			PaymentMode:  "Card",
			Description:  "Weekly fill-up",
			AddedBy:      "Marco",
		},
		{
			Date:         core.NewDate(2025, 1, 5),
			MainCategory: "Food",
			SubCategory:  "Groceries",
			Amount:       core.Money{Cents: 8000},
			PaymentMode:  "Cash",
			Description:  "Market",
			AddedBy:      "Anna",
		},
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 1, 25, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "expenses_2025-01-25.csv", Filename(now))
}

func TestMarshalCSVDescriptionVariant(t *testing.T) {
	out, err := MarshalCSV(sampleExpenses(), VariantDescription)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Main Category,Sub Category,Amount,Payment Mode,Description", lines[0])
	assert.Equal(t, "2025-01-09,Transport,Fuel,45.50,Card,Weekly fill-up", lines[1])
	assert.Equal(t, "2025-01-05,Food,Groceries,80.00,Cash,Market", lines[2])
}

func TestMarshalCSVAddedByVariant(t *testing.T) {
	out, err := MarshalCSV(sampleExpenses(), VariantAddedBy)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Main Category,Sub Category,Amount,Payment Mode,Added By", lines[0])
	assert.Contains(t, lines[1], "Marco")
	assert.NotContains(t, lines[1], "Weekly fill-up")
}

func TestMarshalCSVEmptyLedgerStillHasHeader(t *testing.T) {
	out, err := MarshalCSV(nil, VariantDescription)
	require.NoError(t, err)
	assert.Equal(t, "Date,Main Category,Sub Category,Amount,Payment Mode,Description", strings.TrimSpace(out))
}

func TestCSVRoundTrip(t *testing.T) {
	want := sampleExpenses()

	out, err := MarshalCSV(want, VariantDescription)
	require.NoError(t, err)

	got, err := UnmarshalCSV(out, VariantDescription)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].Date.String(), got[i].Date.String())
		assert.Equal(t, want[i].MainCategory, got[i].MainCategory)
		assert.Equal(t, want[i].SubCategory, got[i].SubCategory)
		assert.Equal(t, want[i].Amount.Cents, got[i].Amount.Cents)
		assert.Equal(t, want[i].PaymentMode, got[i].PaymentMode)
		assert.Equal(t, want[i].Description, got[i].Description)
	}
}

func TestUnmarshalCSVRejectsBadAmount(t *testing.T) {
	data := "Date,Main Category,Sub Category,Amount,Payment Mode,Description\n" +
		"2025-01-05,Food,Groceries,eighty,Cash,Market\n"
	_, err := UnmarshalCSV(data, VariantDescription)
	assert.Error(t, err)
}
