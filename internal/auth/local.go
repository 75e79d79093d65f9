package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"famledger/internal/core"
	"famledger/internal/docstore"
)

const minPasswordLen = 6

// Local implements Provider on top of the document store with bcrypt hashes
// and HS256 session tokens.
type Local struct {
	store  docstore.FamilyStore
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // token ID -> expiry, pruned lazily
}

var _ Provider = (*Local)(nil)

func NewLocal(store docstore.FamilyStore, secret string, ttl time.Duration, logger *slog.Logger) *Local {
	return &Local{
		store:   store,
		secret:  []byte(secret),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		revoked: map[string]time.Time{},
	}
}

func (l *Local) SignUp(ctx context.Context, email, password, displayName, familyName string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}

	if _, err := l.store.GetUserByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailInUse
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return Session{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.NewString()
	family, err := l.store.CreateFamily(ctx, familyName, userID)
	if err != nil {
		return Session{}, fmt.Errorf("create family: %w", err)
	}

	u := core.User{
		ID:           userID,
		Email:        email,
		DisplayName:  displayName,
		FamilyID:     family.ID,
		FamilyName:   family.Name,
		PasswordHash: string(hash),
		JoinedAt:     l.now().UTC(),
	}
	if err := l.store.PutUser(ctx, u); err != nil {
		return Session{}, fmt.Errorf("store user: %w", err)
	}

	l.logger.InfoContext(ctx, "User signed up",
		"user_id", u.ID,
		"family_id", u.FamilyID)

	return l.issue(u)
}

func (l *Local) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	u, err := l.store.GetUserByEmail(ctx, email)
	if errors.Is(err, docstore.ErrNotFound) {
		// Burn a comparison anyway so unknown emails cost the same.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(password))
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	l.logger.InfoContext(ctx, "User signed in",
		"user_id", u.ID,
		"family_id", u.FamilyID)

	return l.issue(u)
}

func (l *Local) SignOut(_ context.Context, token string) error {
	claims, err := l.parse(token)
	if err != nil {
		// Already unusable; nothing to revoke.
		return nil
	}
	l.mu.Lock()
	l.revoked[claims.ID] = claims.ExpiresAt.Time
	for id, exp := range l.revoked {
		if exp.Before(l.now()) {
			delete(l.revoked, id)
		}
	}
	l.mu.Unlock()
	return nil
}

func (l *Local) Authenticate(ctx context.Context, token string) (core.User, error) {
	claims, err := l.parse(token)
	if err != nil {
		return core.User{}, ErrSessionExpired
	}

	l.mu.Lock()
	_, revoked := l.revoked[claims.ID]
	l.mu.Unlock()
	if revoked {
		return core.User{}, ErrSessionExpired
	}

	u, err := l.store.GetUser(ctx, claims.Subject)
	if errors.Is(err, docstore.ErrNotFound) {
		return core.User{}, ErrSessionExpired
	}
	if err != nil {
		return core.User{}, fmt.Errorf("look up user: %w", err)
	}
	return u, nil
}

func (l *Local) issue(u core.User) (Session, error) {
	now := l.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return Session{Token: token, User: u}, nil
}

func (l *Local) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return l.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return l.now() }))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
