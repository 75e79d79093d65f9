package http

import (
	"log/slog"
	"net/http"
	"strings"

	"famledger/internal/auth"
)

type authPage struct {
	Error string
	Email string
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "signup.html", authPage{})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.render(w, r, "signup.html", authPage{Error: "Invalid request."})
			return
		}
		email := strings.TrimSpace(r.Form.Get("email"))
		password := r.Form.Get("password")
		displayName := sanitizeInput(r.Form.Get("display_name"))
		familyName := sanitizeInput(r.Form.Get("family_name"))
		if familyName == "" {
			familyName = displayName + "'s family"
		}

		sess, err := s.authp.SignUp(r.Context(), email, password, displayName, familyName)
		if err != nil {
			slog.WarnContext(r.Context(), "Sign-up rejected", "error", err)
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "signup.html", authPage{Error: auth.UserMessage(err), Email: email})
			return
		}

		setSessionCookie(w, sess.Token, s.sessionTTL)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "signin.html", authPage{})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.render(w, r, "signin.html", authPage{Error: "Invalid request."})
			return
		}
		email := strings.TrimSpace(r.Form.Get("email"))
		password := r.Form.Get("password")

		sess, err := s.authp.SignIn(r.Context(), email, password)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			s.render(w, r, "signin.html", authPage{Error: auth.UserMessage(err), Email: email})
			return
		}

		setSessionCookie(w, sess.Token, s.sessionTTL)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.authp.SignOut(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "Sign-out failed", "error", err)
		}
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/auth/signin", http.StatusSeeOther)
}
