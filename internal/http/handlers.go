package http

import (
	"log/slog"
	"net/http"
	"time"

	"famledger/internal/core"
	"famledger/internal/ledger"
)

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
	}
}

type expensesView struct {
	Filter   core.Filter
	Expenses []expenseRow
	Total    string
	Count    int
}

type expenseRow struct {
	ID           string
	Date         string
	MainCategory string
	SubCategory  string
	Amount       string
	PaymentMode  string
	Description  string
	AddedBy      string
}

type monthBar struct {
	Label      string
	Total      string
	Count      int
	BarPercent int
}

type analyticsView struct {
	Total          string
	Count          int
	MonthTotal     string
	ElapsedPercent int
	DailyAverage   string
	YearTotal      string
	YearPercent    int
	Rolling        []monthBar
}

type indexPage struct {
	User       core.User
	Today      string
	Filter     core.Filter
	Status     string
	Currency   string
	Main       []string
	Sub        []string
	Payment    []string
	Nested     bool
	NestedSubs map[string][]string
	Members    []string
	Months     []string
	Expenses   expensesView
	Analytics  analyticsView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Ledger load failed", "family_id", u.FamilyID, "error", err)
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	snap := sess.Snapshot()
	page := indexPage{
		User:       u,
		Today:      time.Now().Format(core.DateLayout),
		Filter:     snap.Filter,
		Status:     string(snap.Status),
		Currency:   s.currency,
		Main:       snap.Taxonomy.Main,
		Sub:        snap.Taxonomy.AllSubcategories(),
		Payment:    snap.Taxonomy.Payment,
		Nested:     snap.Taxonomy.Shape == core.ShapeNested,
		NestedSubs: snap.Taxonomy.Nested,
		Members:    memberNames(snap.Expenses),
		Months:     monthOptions(snap.Expenses),
		Expenses:   s.expensesView(snap),
		Analytics:  s.analyticsView(snap),
	}
	s.render(w, r, "index.html", page)
}

func (s *Server) expensesView(snap ledger.Snapshot) expensesView {
	rows := make([]expenseRow, 0, len(snap.Projection.Filtered))
	for _, e := range snap.Projection.Filtered {
		rows = append(rows, expenseRow{
			ID:           e.ID,
			Date:         e.Date.String(),
			MainCategory: e.MainCategory,
			SubCategory:  e.SubCategory,
			Amount:       e.Amount.Format(s.currency),
			PaymentMode:  e.PaymentMode,
			Description:  e.Description,
			AddedBy:      e.AddedBy,
		})
	}
	return expensesView{
		Filter:   snap.Filter,
		Expenses: rows,
		Total:    snap.Projection.Summary.Total.Format(s.currency),
		Count:    snap.Projection.Summary.Count,
	}
}

func (s *Server) analyticsView(snap ledger.Snapshot) analyticsView {
	p := snap.Projection
	v := analyticsView{
		Total:          p.Summary.Total.Format(s.currency),
		Count:          p.Summary.Count,
		MonthTotal:     p.Month.Total.Format(s.currency),
		ElapsedPercent: p.Month.ElapsedPercent,
		DailyAverage:   p.Month.DailyAverage.Format(s.currency),
		YearTotal:      p.Year.Total.Format(s.currency),
		YearPercent:    p.Year.ElapsedPercent,
	}
	for _, b := range p.Rolling {
		v.Rolling = append(v.Rolling, monthBar{
			Label:      b.Label,
			Total:      b.Total.Format(s.currency),
			Count:      b.Count,
			BarPercent: b.BarPercent,
		})
	}
	return v
}

// memberNames lists distinct contributors in first-seen order, for the
// member filter dropdown.
func memberNames(expenses []core.Expense) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range expenses {
		if e.AddedBy == "" || seen[e.AddedBy] {
			continue
		}
		seen[e.AddedBy] = true
		out = append(out, e.AddedBy)
	}
	return out
}

// monthOptions lists distinct YYYY-MM values present in the ledger, newest
// first (the expense slice is already date-descending).
func monthOptions(expenses []core.Expense) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range expenses {
		ym := e.Date.YearMonth()
		if seen[ym] {
			continue
		}
		seen[ym] = true
		out = append(out, ym)
	}
	return out
}
