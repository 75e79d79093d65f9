package core

import "time"

type (
	// Summary covers the filtered set only.
	Summary struct {
		Total Money
		Count int
	}

	// MonthToDate covers unfiltered records in the current calendar month.
	MonthToDate struct {
		Total          Money
		ElapsedPercent int // round(day-of-month / days-in-month * 100)
		DailyAverage   Money
	}

	// YearToDate covers unfiltered records in the current calendar year.
	YearToDate struct {
		Total          Money
		ElapsedPercent int // round(day-of-year / days-in-year * 100)
	}

	// MonthBucket is one bar of the rolling 3-month series.
	MonthBucket struct {
		Year       int
		Month      time.Month
		Label      string // "Jan 2006"
		Total      Money
		Count      int
		BarPercent int // height normalized to the window max, 0 when max is 0
	}

	// Projection is everything the views derive from one ledger snapshot,
	// one filter state and one observation time.
	Projection struct {
		Filtered []Expense
		Summary  Summary
		Month    MonthToDate
		Year     YearToDate
		Rolling  []MonthBucket // exactly 3 entries, oldest first
	}
)

// Project recomputes every derived view from scratch. It is pure: same
// inputs, same output, no retained state. At this data scale a full
// recompute on every ledger, taxonomy or filter change is cheap.
func Project(expenses []Expense, filter Filter, now time.Time) Projection {
	filtered := filter.Apply(expenses)

	var total int64
	for _, e := range filtered {
		total += e.Amount.Cents
	}

	return Projection{
		Filtered: filtered,
		Summary:  Summary{Total: Money{Cents: total}, Count: len(filtered)},
		Month:    projectMonth(expenses, now),
		Year:     projectYear(expenses, now),
		Rolling:  projectRolling(expenses, now),
	}
}

// roundPercent computes round(num/den*100) in integer arithmetic.
func roundPercent(num, den int64) int {
	if den <= 0 {
		return 0
	}
	return int((num*100 + den/2) / den)
}

func projectMonth(expenses []Expense, now time.Time) MonthToDate {
	prefix := now.Format("2006-01")
	var total int64
	for _, e := range expenses {
		if e.Date.YearMonth() == prefix {
			total += e.Amount.Cents
		}
	}

	day := now.Day()
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()

	// day == 0 cannot occur for a valid date, but the division is guarded
	// all the same.
	var avg int64
	if day > 0 {
		avg = (total + int64(day)/2) / int64(day)
	}

	return MonthToDate{
		Total:          Money{Cents: total},
		ElapsedPercent: roundPercent(int64(day), int64(daysInMonth)),
		DailyAverage:   Money{Cents: avg},
	}
}

func daysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

func projectYear(expenses []Expense, now time.Time) YearToDate {
	prefix := now.Format("2006")
	var total int64
	for _, e := range expenses {
		if e.Date.Format("2006") == prefix {
			total += e.Amount.Cents
		}
	}
	return YearToDate{
		Total:          Money{Cents: total},
		ElapsedPercent: roundPercent(int64(now.YearDay()), int64(daysInYear(now.Year()))),
	}
}

func projectRolling(expenses []Expense, now time.Time) []MonthBucket {
	buckets := make([]MonthBucket, 0, 3)

	// Oldest first: two months back, one month back, current month.
	for i := 2; i >= 0; i-- {
		anchor := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		prefix := anchor.Format("2006-01")

		var total int64
		count := 0
		for _, e := range expenses {
			if e.Date.YearMonth() == prefix {
				total += e.Amount.Cents
				count++
			}
		}

		buckets = append(buckets, MonthBucket{
			Year:  anchor.Year(),
			Month: anchor.Month(),
			Label: anchor.Format("Jan 2006"),
			Total: Money{Cents: total},
			Count: count,
		})
	}

	var max int64
	for _, b := range buckets {
		if b.Total.Cents > max {
			max = b.Total.Cents
		}
	}
	for i := range buckets {
		buckets[i].BarPercent = roundPercent(buckets[i].Total.Cents, max)
	}
	return buckets
}
