// Package session owns the bearer credential: one token string persisted
// under the home directory, hydrated once at startup, cleared on logout.
// Dependent code must not assume either authenticated state while the
// session is still hydrating.
package session

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenFileName is the well-known storage location under the user's home.
const TokenFileName = ".remindcall_token"

type State int

const (
	Hydrating State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Hydrating:
		return "hydrating"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

type Session struct {
	mu       sync.Mutex
	path     string
	token    string
	hydrated bool
}

func New() *Session {
	return &Session{path: defaultPath()}
}

// NewAt uses an explicit token file path. Tests use this.
func NewAt(path string) *Session {
	return &Session{path: path}
}

func defaultPath() string {
	home, _ := os.UserHomeDir()
	return home + string(os.PathSeparator) + TokenFileName
}

// Hydrate loads the persisted credential, once. Missing file means
// unauthenticated; that is not an error. Any other read failure leaves
// the session in Hydrating so a broken presence check is never reported
// as a completed one, and a later Hydrate can retry.
func (s *Session) Hydrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.hydrated = true
			return nil
		}
		return err
	}
	s.token = strings.TrimSpace(string(b))
	s.hydrated = true
	return nil
}

// Token returns the current credential, or "" when there is none.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.hydrated:
		return Hydrating
	case s.token == "":
		return Unauthenticated
	default:
		return Authenticated
	}
}

func (s *Session) IsAuthenticated() bool { return s.State() == Authenticated }

// IsLoading is true until the one-time presence check has completed.
func (s *Session) IsLoading() bool { return s.State() == Hydrating }

// SetToken persists the credential and transitions to Authenticated.
func (s *Session) SetToken(token string) error {
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.hydrated = true
	return nil
}

// Clear is logout: it removes the persisted credential and the in-memory
// token. It always succeeds; a missing file is already cleared.
func (s *Session) Clear() {
	_ = os.Remove(s.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.hydrated = true
}

// ExpiresAt reads the exp claim of the stored token without verifying the
// signature. Display only; the server stays authoritative on validity.
func (s *Session) ExpiresAt() (time.Time, bool) {
	tok := s.Token()
	if tok == "" {
		return time.Time{}, false
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
