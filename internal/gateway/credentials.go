// ABOUTME: Opaque bearer/refresh credential storage consulted at the 401 boundary
// ABOUTME: Inspects JWT expiry so a known-expired bearer is refreshed proactively

package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredentials is returned when the store holds no bearer credential.
var ErrNoCredentials = errors.New("no credentials available")

// Credentials is an opaque bearer/refresh pair.
type Credentials struct {
	Bearer  string
	Refresh string
}

// CredentialStore is the narrow contract the gateway uses to read and update
// credentials. The gateway consults it before each request and at the 401
// boundary; it never interprets the tokens beyond reading the bearer expiry.
type CredentialStore interface {
	Get(ctx context.Context) (Credentials, error)
	Set(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// MemoryCredentialStore is an in-memory CredentialStore.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds Credentials
	set   bool
}

// NewMemoryCredentialStore returns a store seeded with the given pair.
func NewMemoryCredentialStore(creds Credentials) *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: creds, set: creds.Bearer != ""}
}

func (m *MemoryCredentialStore) Get(ctx context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return Credentials{}, ErrNoCredentials
	}
	return m.creds, nil
}

func (m *MemoryCredentialStore) Set(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	m.set = true
	return nil
}

func (m *MemoryCredentialStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	m.set = false
	return nil
}

// bearerExpired reports whether the bearer is a JWT whose exp claim has
// passed. Opaque (non-JWT) tokens or tokens without exp are treated as live;
// the 401 path covers those.
func bearerExpired(bearer string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearer, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
