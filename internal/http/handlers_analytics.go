package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"famledger/internal/core"
	"famledger/internal/ledger"
)

func (s *Server) handleAnalyticsPartial(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.render(w, r, "analytics.html", s.analyticsView(sess.Snapshot()))
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	sess, err := s.ledgerFor(r.Context(), u.FamilyID)
	if err != nil {
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
	}{Status: string(sess.Status())})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
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

	kind, ok := categoryKind(r.FormValue("kind"))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Unknown category list")
		return
	}
	name := sanitizeInput(r.FormValue("name"))
	parent := sanitizeInput(r.FormValue("parent"))

	if err := sess.AddCategory(r.Context(), kind, name, parent); err != nil {
		s.writeCategoryError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Category added</div>`))
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
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

	kind, ok := categoryKind(r.FormValue("kind"))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Unknown category list")
		return
	}
	name := sanitizeInput(r.FormValue("name"))
	parent := sanitizeInput(r.FormValue("parent"))
	confirm := ledger.Confirm(r.FormValue("confirm") == "true")

	if err := sess.RemoveCategory(r.Context(), kind, name, parent, confirm); err != nil {
		if errors.Is(err, ledger.ErrConfirmationRequired) {
			writeError(w, http.StatusPreconditionRequired, "Removal requires confirmation")
			return
		}
		s.writeCategoryError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Category removed</div>`))
}

func categoryKind(v string) (core.CategoryKind, bool) {
	switch v {
	case "main":
		return core.KindMain, true
	case "sub":
		return core.KindSub, true
	case "payment":
		return core.KindPayment, true
	}
	return "", false
}

func (s *Server) writeCategoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrDuplicateCategory):
		writeError(w, http.StatusUnprocessableEntity, "That category already exists")
	case errors.Is(err, core.ErrEmptyCategoryName):
		writeError(w, http.StatusUnprocessableEntity, "Category name cannot be empty")
	case errors.Is(err, core.ErrUnknownCategory):
		writeError(w, http.StatusUnprocessableEntity, "Unknown category")
	case errors.Is(err, ledger.ErrOffline):
		writeError(w, http.StatusServiceUnavailable, "You are offline. The change was not saved.")
	default:
		slog.ErrorContext(r.Context(), "Category mutation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not update categories")
	}
}
