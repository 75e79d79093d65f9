package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"famledger/internal/auth"
	"famledger/internal/core"
	"famledger/internal/docstore"
	"famledger/internal/docstore/memory"
	"famledger/internal/export"
	"famledger/internal/feed"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	bus := feed.NewBus()
	store := memory.New(core.ShapeFlat, bus)
	provider := auth.NewLocal(store, "test-secret-test-secret", time.Hour, slog.Default())
	s := NewServer(":0", store, provider, bus, "$", export.VariantDescription, time.Hour)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s, store
}

// signUp runs the real sign-up flow and returns the session cookie.
func signUp(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	form := url.Values{
		"email":        {"anna@example.com"},
		"password":     {"secret1"},
		"display_name": {"Anna"},
		"family_name":  {"Rossi"},
	}
	r := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, r)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("sign-up status = %d, want 303 (body: %s)", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("sign-up did not set a session cookie")
	return nil
}

func do(s *Server, method, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	r := httptest.NewRequest(method, path, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(w, r)
	return w
}

func TestIndexRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodGet, "/", nil, nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 redirect", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/auth/signin" {
		t.Errorf("redirect location = %s, want /auth/signin", loc)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	s, _ := newTestServer(t)
	signUp(t, s)

	form := url.Values{"email": {"anna@example.com"}, "password": {"wrong"}}
	w := do(s, http.MethodPost, "/auth/signin", form, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Incorrect email or password.") {
		t.Errorf("body missing fixed error message, got: %s", w.Body.String())
	}
}

func TestCreateExpenseFlow(t *testing.T) {
	s, _ := newTestServer(t)
	cookie := signUp(t, s)

	form := url.Values{
		"date":          {"2025-01-10"},
		"main_category": {"Food"},
		"sub_category":  {"Groceries"},
		"amount":        {"80.00"},
		"payment_mode":  {"Cash"},
		"description":   {"Market"},
	}
	w := do(s, http.MethodPost, "/expenses", form, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "$80.00") {
		t.Errorf("confirmation missing formatted amount, got: %s", w.Body.String())
	}

	// The notification has settled the mirror; the partial shows the row.
	w = do(s, http.MethodGet, "/ui/expenses", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("partial status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Groceries") {
		t.Errorf("expense table missing new row, got: %s", w.Body.String())
	}
}

func TestCreateExpenseRejectsUnknownCategory(t *testing.T) {
	s, _ := newTestServer(t)
	cookie := signUp(t, s)

	form := url.Values{
		"date":          {"2025-01-10"},
		"main_category": {"Yachts"},
		"sub_category":  {"Groceries"},
		"amount":        {"80.00"},
		"payment_mode":  {"Cash"},
	}
	w := do(s, http.MethodPost, "/expenses", form, cookie)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestDeleteExpenseConfirmationGate(t *testing.T) {
	s, _ := newTestServer(t)
	cookie := signUp(t, s)

	form := url.Values{
		"date":          {"2025-01-10"},
		"main_category": {"Food"},
		"sub_category":  {"Groceries"},
		"amount":        {"10.00"},
		"payment_mode":  {"Cash"},
	}
	if w := do(s, http.MethodPost, "/expenses", form, cookie); w.Code != http.StatusOK {
		t.Fatalf("create status = %d, want 200", w.Code)
	}

	// Find the row ID through the rendered table.
	body := do(s, http.MethodGet, "/ui/expenses", nil, cookie).Body.String()
	idx := strings.Index(body, `data-expense-id="`)
	if idx < 0 {
		t.Fatalf("no expense id in table: %s", body)
	}
	rest := body[idx+len(`data-expense-id="`):]
	id := rest[:strings.Index(rest, `"`)]

	w := do(s, http.MethodPost, "/expenses/delete", url.Values{"id": {id}}, cookie)
	if w.Code != http.StatusPreconditionRequired {
		t.Fatalf("unconfirmed delete status = %d, want 428", w.Code)
	}

	w = do(s, http.MethodPost, "/expenses/delete", url.Values{"id": {id}, "confirm": {"true"}}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("confirmed delete status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
}

func TestFilterPartial(t *testing.T) {
	s, _ := newTestServer(t)
	cookie := signUp(t, s)

	add := func(date, main, sub, amount string) {
		t.Helper()
		form := url.Values{
			"date":          {date},
			"main_category": {main},
			"sub_category":  {sub},
			"amount":        {amount},
			"payment_mode":  {"Cash"},
		}
		if w := do(s, http.MethodPost, "/expenses", form, cookie); w.Code != http.StatusOK {
			t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
		}
	}
	add("2025-01-10", "Food", "Groceries", "30.00")
	add("2025-01-11", "Transport", "Fuel", "20.00")

	w := do(s, http.MethodPost, "/filters", url.Values{"main_category": {"Food"}}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("filter status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Groceries") || strings.Contains(body, "Fuel") {
		t.Errorf("filtered table wrong, got: %s", body)
	}
	if !strings.Contains(body, "$30.00") {
		t.Errorf("filtered total missing, got: %s", body)
	}

	w = do(s, http.MethodPost, "/filters/reset", nil, cookie)
	if !strings.Contains(w.Body.String(), "Fuel") {
		t.Errorf("reset did not restore all rows")
	}
}

func TestExportCSV(t *testing.T) {
	s, _ := newTestServer(t)
	cookie := signUp(t, s)

	timeNow = func() time.Time { return time.Date(2025, 1, 25, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = time.Now })

	form := url.Values{
		"date":          {"2025-01-10"},
		"main_category": {"Food"},
		"sub_category":  {"Groceries"},
		"amount":        {"80.00"},
		"payment_mode":  {"Cash"},
		"description":   {"Market"},
	}
	if w := do(s, http.MethodPost, "/expenses", form, cookie); w.Code != http.StatusOK {
		t.Fatalf("create status = %d", w.Code)
	}

	w := do(s, http.MethodGet, "/export.csv", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "expenses_2025-01-25.csv") {
		t.Errorf("Content-Disposition = %s, want expenses_2025-01-25.csv", got)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "Date,Main Category,Sub Category,Amount,Payment Mode,Description") {
		t.Errorf("CSV header wrong: %s", body)
	}
	if !strings.Contains(body, "2025-01-10,Food,Groceries,80.00,Cash,Market") {
		t.Errorf("CSV row missing: %s", body)
	}
}

func TestSyncStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	cookie := signUp(t, s)

	w := do(s, http.MethodGet, "/api/sync-status", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}
	if !strings.Contains(w.Body.String(), `"status"`) {
		t.Errorf("body = %s, want status JSON", w.Body.String())
	}
}

func TestCategoryManagement(t *testing.T) {
	s, _ := newTestServer(t)
	cookie := signUp(t, s)

	w := do(s, http.MethodPost, "/categories/add", url.Values{"kind": {"main"}, "name": {"Travel"}}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}

	// Case-insensitive duplicate.
	w = do(s, http.MethodPost, "/categories/add", url.Values{"kind": {"main"}, "name": {"travel"}}, cookie)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate add status = %d, want 422", w.Code)
	}

	w = do(s, http.MethodPost, "/categories/remove", url.Values{"kind": {"main"}, "name": {"Travel"}}, cookie)
	if w.Code != http.StatusPreconditionRequired {
		t.Fatalf("unconfirmed remove status = %d, want 428", w.Code)
	}
	w = do(s, http.MethodPost, "/categories/remove", url.Values{"kind": {"main"}, "name": {"Travel"}, "confirm": {"true"}}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("confirmed remove status = %d: %s", w.Code, w.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodGet, "/auth/signin", nil, nil)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %s, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %s, want DENY", got)
	}
}

// slowListStore delays the first snapshot read so concurrent requests race
// the session priming.
type slowListStore struct {
	docstore.Store
	delay time.Duration
}

func (s *slowListStore) ListExpenses(ctx context.Context, familyID string) ([]core.Expense, error) {
	time.Sleep(s.delay)
	return s.Store.ListExpenses(ctx, familyID)
}

func TestConcurrentFirstRequestsSeePrimedMirror(t *testing.T) {
	bus := feed.NewBus()
	mem := memory.New(core.ShapeFlat, bus)
	store := &slowListStore{Store: mem, delay: 50 * time.Millisecond}
	provider := auth.NewLocal(store, "test-secret-test-secret", time.Hour, slog.Default())
	s := NewServer(":0", store, provider, bus, "$", export.VariantDescription, time.Hour)
	t.Cleanup(func() { s.rateLimiter.stop() })

	cookie := signUp(t, s)

	// Seed the ledger behind the server's back so no session exists yet.
	u, err := mem.GetUserByEmail(context.Background(), "anna@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	e := core.Expense{
		Date:         core.NewDate(2025, 1, 10),
		MainCategory: "Food",
		SubCategory:  "Groceries",
		Amount:       core.Money{Cents: 8000},
		PaymentMode:  "Cash",
	}
	if _, err := mem.AddExpense(context.Background(), u.FamilyID, e); err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}

	// Both first requests must wait out the priming reconcile and render the
	// seeded row; neither may see a transient empty mirror.
	bodies := make([]string, 2)
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bodies[i] = do(s, http.MethodGet, "/ui/expenses", nil, cookie).Body.String()
		}(i)
	}
	wg.Wait()

	for i, body := range bodies {
		if !strings.Contains(body, "Groceries") {
			t.Errorf("request %d rendered an unprimed mirror: %s", i, body)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := do(s, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}
