// Package auth is the identity provider port plus a local adapter backed by
// the document store.
package auth

import (
	"context"
	"errors"

	"famledger/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrSessionExpired     = errors.New("session expired")
)

// UserMessage maps an auth error to the fixed message shown to users. Unknown
// errors collapse to a generic line so internals never leak into the UI.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Incorrect email or password."
	case errors.Is(err, ErrEmailInUse):
		return "An account with this email already exists."
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 6 characters."
	case errors.Is(err, ErrInvalidEmail):
		return "Please enter a valid email address."
	default:
		return "Something went wrong. Please try again."
	}
}

// Session is an authenticated session handed back to the transport layer.
type Session struct {
	Token string
	User  core.User
}

// Provider is the identity port. SignUp provisions the household: it creates
// the family, seeds the default taxonomy and records the family on the user
// profile.
type Provider interface {
	SignUp(ctx context.Context, email, password, displayName, familyName string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	// Authenticate resolves a token back to its user.
	Authenticate(ctx context.Context, token string) (core.User, error)
}
