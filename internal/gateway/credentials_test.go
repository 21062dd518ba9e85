// ABOUTME: Tests for credential storage and bearer expiry inspection
// ABOUTME: Includes the proactive-refresh path for known-expired JWT bearers

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fintrack/internal/entity"
)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestMemoryCredentialStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore(Credentials{})

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, store.Set(ctx, Credentials{Bearer: "b", Refresh: "r"}))
	creds, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", creds.Bearer)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestBearerExpired(t *testing.T) {
	now := time.Now()

	assert.True(t, bearerExpired(signedJWT(t, now.Add(-time.Minute)), now))
	assert.False(t, bearerExpired(signedJWT(t, now.Add(time.Hour)), now))
	assert.False(t, bearerExpired("opaque-token", now), "non-JWT bearers are treated as live")
}

func TestDo_ProactiveRefreshOnExpiredBearer(t *testing.T) {
	var authHeaders []string
	var refreshes atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshes.Add(1)
			_, _ = w.Write([]byte(`{"token":"fresh"}`))
			return
		}
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	expired := signedJWT(t, time.Now().Add(-time.Minute))
	creds := NewMemoryCredentialStore(Credentials{Bearer: expired, Refresh: "r1"})
	g, err := New(Config{BaseURL: srv.URL, Credentials: creds})
	require.NoError(t, err)

	_, err = g.List(context.Background(), entity.TypeExpense, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), refreshes.Load())
	require.Len(t, authHeaders, 1, "the expired bearer never hits the API")
	assert.Equal(t, "Bearer fresh", authHeaders[0])

	stored, err := creds.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", stored.Refresh, "refresh credential kept when server omits a new one")
}
