// Package http serves the web UI: auth forms, the expense form and table,
// analytics partials and the CSV download.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"famledger/internal/auth"
	"famledger/internal/docstore"
	"famledger/internal/export"
	"famledger/internal/feed"
	"famledger/internal/ledger"
	appweb "famledger/web"
)

const sessionCookie = "famledger_session"

type Server struct {
	http.Server
	templates *template.Template

	store      docstore.Store
	authp      auth.Provider
	bus        *feed.Bus
	currency   string
	variant    export.Variant
	sessionTTL time.Duration

	rateLimiter *rateLimiter

	mu      sync.Mutex
	ledgers map[string]*ledgerEntry
}

// ledgerEntry guards first-use priming: concurrent requests for the same
// family block on once until the mirror holds its first snapshot.
type ledgerEntry struct {
	sess *ledger.Session
	once sync.Once
	err  error
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, store docstore.Store, authp auth.Provider, bus *feed.Bus, currency string, variant export.Variant, sessionTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:       store,
		authp:       authp,
		bus:         bus,
		currency:    currency,
		variant:     variant,
		sessionTTL:  sessionTTL,
		rateLimiter: newRateLimiter(),
		ledgers:     make(map[string]*ledgerEntry),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/auth/signup", s.withSecurityHeaders(s.handleSignUp))
	mux.HandleFunc("/auth/signin", s.withSecurityHeaders(s.handleSignIn))
	mux.HandleFunc("/auth/signout", s.withSecurityHeaders(s.requireUser(s.handleSignOut)))

	mux.HandleFunc("/", s.withSecurityHeaders(s.requireUser(s.handleIndex)))
	mux.HandleFunc("/expenses", s.withSecurityHeaders(s.requireUser(s.handleCreateExpense)))
	mux.HandleFunc("/expenses/update", s.withSecurityHeaders(s.requireUser(s.handleUpdateExpense)))
	mux.HandleFunc("/expenses/delete", s.withSecurityHeaders(s.requireUser(s.handleDeleteExpense)))
	mux.HandleFunc("/filters", s.withSecurityHeaders(s.requireUser(s.handleSetFilter)))
	mux.HandleFunc("/filters/reset", s.withSecurityHeaders(s.requireUser(s.handleResetFilter)))
	mux.HandleFunc("/categories/add", s.withSecurityHeaders(s.requireUser(s.handleAddCategory)))
	mux.HandleFunc("/categories/remove", s.withSecurityHeaders(s.requireUser(s.handleRemoveCategory)))
	mux.HandleFunc("/export.csv", s.withSecurityHeaders(s.requireUser(s.handleExportCSV)))

	// UI partials
	mux.HandleFunc("/ui/expenses", s.withSecurityHeaders(s.requireUser(s.handleExpensesPartial)))
	mux.HandleFunc("/ui/analytics", s.withSecurityHeaders(s.requireUser(s.handleAnalyticsPartial)))
	mux.HandleFunc("/api/sync-status", s.withSecurityHeaders(s.requireUser(s.handleSyncStatus)))

	return s
}

// ledgerFor returns the reconciliation controller for a family, creating and
// priming it on first use. Sessions subscribe to the feed so notifications
// keep them converged.
func (s *Server) ledgerFor(ctx context.Context, familyID string) (*ledger.Session, error) {
	s.mu.Lock()
	entry, ok := s.ledgers[familyID]
	if !ok {
		entry = &ledgerEntry{sess: ledger.NewSession(familyID, s.store, slog.Default())}
		s.ledgers[familyID] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		unsubscribe := s.bus.Subscribe(entry.sess.HandleNotification)
		if entry.err = entry.sess.Reconcile(ctx); entry.err != nil {
			unsubscribe()
		}
	})
	if entry.err != nil {
		// A failed prime is not cached; the next request starts over.
		s.mu.Lock()
		if s.ledgers[familyID] == entry {
			delete(s.ledgers, familyID)
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("prime ledger: %w", entry.err)
	}
	return entry.sess, nil
}

// Shutdown stops background cleanup before draining the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.stop()
	return s.Server.Shutdown(ctx)
}

// withSecurityHeaders adds security headers, rate limiting and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit mutations only; reads stay cheap.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// requireUser resolves the session cookie and redirects to sign-in when it is
// missing or stale.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Redirect(w, r, "/auth/signin", http.StatusSeeOther)
			return
		}
		u, err := s.authp.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionExpired) {
				slog.ErrorContext(r.Context(), "Session lookup failed", "error", err)
			}
			clearSessionCookie(w)
			http.Redirect(w, r, "/auth/signin", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, u)
		next(w, r.WithContext(ctx))
	}
}

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyUser
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
