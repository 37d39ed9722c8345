package odin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newOdin(t *testing.T, h http.HandlerFunc) *Verifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k-123"})
	require.NoError(t, err)
	return NewVerifier(c)
}

func TestVerify_ReturnsClaims(t *testing.T) {
	v := newOdin(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, verifyPath, r.URL.Path)
		require.Equal(t, "k-123", r.Header.Get("X-Api-Key"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "tok", body["token"])

		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": " op-1 ", "email": "op@cattery.test", "device_id": "tablet"})
	})

	claims, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "op-1", claims.UserID)
	require.Equal(t, "tablet", claims.Scope())
}

func TestVerify_Unauthorized(t *testing.T) {
	v := newOdin(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	_, err := v.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrOdinUnauthorized)
}

func TestVerify_UpstreamAndMissingUser(t *testing.T) {
	v := newOdin(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := v.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrOdinUpstream)

	v = newOdin(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"email":"x@y"}`))
	})
	_, err = v.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrOdinUpstream)
}

func TestVerify_NotConfigured(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	require.False(t, c.IsConfigured())

	_, err = NewVerifier(c).Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrOdinNotConfigured)

	_, err = NewVerifier(c).Verify(context.Background(), "  ")
	require.ErrorIs(t, err, ErrTokenEmpty)
}

func TestVerify_CachesClaimsUntilExpiry(t *testing.T) {
	var calls atomic.Int32
	v := newOdin(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "op-1", "device_id": " Tablet-A "})
	})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	claims, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "tablet-a", claims.Scope())

	now = now.Add(DefaultClaimsTTL - time.Second)
	_, err = v.Verify(context.Background(), " tok ")
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Second)
	_, err = v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestVerify_DoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	v := newOdin(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "op-1"})
	})

	_, err := v.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrOdinUnauthorized)

	claims, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "op-1", claims.Scope())
}

func TestVerify_ZeroTTLAlwaysAsksOdin(t *testing.T) {
	var calls atomic.Int32
	v := newOdin(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "op-1"})
	}).WithTTL(0)

	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), "tok")
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), calls.Load())
}
