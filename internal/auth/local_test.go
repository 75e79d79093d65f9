package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"famledger/internal/core"
	"famledger/internal/docstore/memory"
)

func newProvider(t *testing.T) *Local {
	t.Helper()
	store := memory.New(core.ShapeFlat, nil)
	return NewLocal(store, "test-secret", time.Hour, slog.Default())
}

func TestSignUpProvisionsHousehold(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.ShapeFlat, nil)
	p := NewLocal(store, "test-secret", time.Hour, slog.Default())

	sess, err := p.SignUp(ctx, "anna@example.com", "secret1", "Anna", "Rossi")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if sess.Token == "" {
		t.Error("SignUp() returned empty token")
	}
	if sess.User.FamilyID == "" {
		t.Fatal("SignUp() did not record a family on the profile")
	}

	tax, err := store.GetTaxonomy(ctx, sess.User.FamilyID)
	if err != nil {
		t.Fatalf("GetTaxonomy() error = %v", err)
	}
	if len(tax.Main) == 0 {
		t.Error("sign-up did not seed the default taxonomy")
	}
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"invalid email", "not-an-email", "secret1", ErrInvalidEmail},
		{"short password", "anna@example.com", "12345", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SignUp(ctx, tt.email, tt.password, "Anna", "Rossi")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SignUp() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	if _, err := p.SignUp(ctx, "anna@example.com", "secret1", "Anna", "Rossi"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	_, err := p.SignUp(ctx, "Anna@Example.com", "secret2", "Other", "Bianchi")
	if !errors.Is(err, ErrEmailInUse) {
		t.Errorf("SignUp(duplicate) error = %v, want ErrEmailInUse", err)
	}
}

func TestSignInRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	if _, err := p.SignUp(ctx, "anna@example.com", "secret1", "Anna", "Rossi"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	sess, err := p.SignIn(ctx, "anna@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	u, err := p.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if u.Email != "anna@example.com" {
		t.Errorf("Authenticate() email = %s, want anna@example.com", u.Email)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	if _, err := p.SignUp(ctx, "anna@example.com", "secret1", "Anna", "Rossi"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if _, err := p.SignIn(ctx, "anna@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("SignIn(wrong password) error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := p.SignIn(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("SignIn(unknown email) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	sess, err := p.SignUp(ctx, "anna@example.com", "secret1", "Anna", "Rossi")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if err := p.SignOut(ctx, sess.Token); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if _, err := p.Authenticate(ctx, sess.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Authenticate(revoked) error = %v, want ErrSessionExpired", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	ctx := context.Background()
	store := memory.New(core.ShapeFlat, nil)
	p := NewLocal(store, "test-secret", time.Minute, slog.Default())

	clock := time.Date(2025, 1, 25, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	sess, err := p.SignUp(ctx, "anna@example.com", "secret1", "Anna", "Rossi")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := p.Authenticate(ctx, sess.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Authenticate(expired) error = %v, want ErrSessionExpired", err)
	}
}

func TestUserMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidCredentials, "Incorrect email or password."},
		{ErrEmailInUse, "An account with this email already exists."},
		{ErrWeakPassword, "Password must be at least 6 characters."},
		{ErrInvalidEmail, "Please enter a valid email address."},
		{errors.New("disk on fire"), "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if msg := UserMessage(errors.New("internal detail")); strings.Contains(msg, "internal") {
		t.Error("UserMessage leaked internals")
	}
}
