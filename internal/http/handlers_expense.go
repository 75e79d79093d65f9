package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"famledger/internal/core"
	"famledger/internal/export"
	"famledger/internal/ledger"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}

	e, errMsg := s.expenseFromForm(r)
	if errMsg != "" {
		writeError(w, http.StatusUnprocessableEntity, errMsg)
		return
	}
	e.AddedBy = u.DisplayName
	e.AddedByEmail = u.Email

	if _, err := sess.AddExpense(r.Context(), e); err != nil {
		s.writeMutationError(w, r, err, "Could not save the expense")
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Expense added: ` +
		template.HTMLEscapeString(e.MainCategory) + ` / ` + template.HTMLEscapeString(e.SubCategory) +
		` ` + template.HTMLEscapeString(e.Amount.Format(s.currency)) + `</div>`))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}

	id := strings.TrimSpace(r.FormValue("id"))
	if id == "" {
		writeError(w, http.StatusUnprocessableEntity, "Missing expense id")
		return
	}
	e, errMsg := s.expenseFromForm(r)
	if errMsg != "" {
		writeError(w, http.StatusUnprocessableEntity, errMsg)
		return
	}

	if err := sess.UpdateExpense(r.Context(), id, e); err != nil {
		s.writeMutationError(w, r, err, "Could not update the expense")
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Expense updated</div>`))
}

// handleDeleteExpense only reaches the store when the form carries the
// confirmation flag the UI sets after its dialog.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}

	id := strings.TrimSpace(r.FormValue("id"))
	confirm := ledger.Confirm(r.FormValue("confirm") == "true")

	if err := sess.DeleteExpense(r.Context(), id, confirm); err != nil {
		if errors.Is(err, ledger.ErrConfirmationRequired) {
			writeError(w, http.StatusPreconditionRequired, "Deletion requires confirmation")
			return
		}
		s.writeMutationError(w, r, err, "Could not delete the expense")
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Expense deleted</div>`))
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}

	sess.SetFilter(core.Filter{
		MainCategory: sanitizeInput(r.FormValue("main_category")),
		Member:       sanitizeInput(r.FormValue("member")),
		YearMonth:    sanitizeInput(r.FormValue("month")),
	})
	s.renderExpensesPartial(w, r, sess)
}

func (s *Server) handleResetFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}
	sess.ResetFilter()
	s.renderExpensesPartial(w, r, sess)
}

func (s *Server) handleExpensesPartial(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}
	s.renderExpensesPartial(w, r, sess)
}

func (s *Server) renderExpensesPartial(w http.ResponseWriter, r *http.Request, sess *ledger.Session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.render(w, r, "expenses.html", s.expensesView(sess.Snapshot()))
}

// handleExportCSV streams the current filtered view as a CSV download.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}

	snap := sess.Snapshot()
	data, err := export.MarshalCSV(snap.Projection.Filtered, s.variant)
	if err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "family_id", u.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(timeNow())+`"`)
	_, _ = w.Write([]byte(data))
}

// expenseFromForm parses and sanitizes the shared expense form fields.
// Returns a user-facing message when a field is unusable.
func (s *Server) expenseFromForm(r *http.Request) (core.Expense, string) {
	if err := r.ParseForm(); err != nil {
		return core.Expense{}, "Invalid request format"
	}

	date, err := core.ParseDate(r.Form.Get("date"))
	if err != nil {
		return core.Expense{}, "Invalid date"
	}
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("amount")))
	if err != nil {
		return core.Expense{}, "Invalid amount"
	}

	return core.Expense{
		Date:         date,
		MainCategory: sanitizeInput(r.Form.Get("main_category")),
		SubCategory:  sanitizeInput(r.Form.Get("sub_category")),
		Amount:       core.Money{Cents: cents},
		PaymentMode:  sanitizeInput(r.Form.Get("payment_mode")),
		Description:  sanitizeInput(r.Form.Get("description")),
	}, ""
}

func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, err error, generic string) {
	switch {
	case errors.Is(err, ledger.ErrOffline):
		writeError(w, http.StatusServiceUnavailable, "You are offline. The change was not saved.")
	case errors.Is(err, ledger.ErrUnknownCategory):
		writeError(w, http.StatusUnprocessableEntity, "Unknown category")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrMissingDate),
		errors.Is(err, core.ErrMissingMainCat),
		errors.Is(err, core.ErrMissingSubCat),
		errors.Is(err, core.ErrMissingPaymentMode):
		writeError(w, http.StatusUnprocessableEntity, "Invalid expense data")
	default:
		slog.ErrorContext(r.Context(), "Expense mutation failed", "error", err)
		writeError(w, http.StatusInternalServerError, generic)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(msg) + `</div>`))
}
