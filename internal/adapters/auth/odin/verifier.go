package odin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cattery-breeding/internal/ports/auth"
)

var (
	ErrTokenEmpty  = errors.New("token is empty")
	ErrMissingUser = errors.New("odin claims missing user id")
)

// DefaultClaimsTTL es cuánto se reutiliza una verificación exitosa.
// Las tablets consultan el calendario a menudo; así no se pega a Odin en cada request.
const DefaultClaimsTTL = 30 * time.Second

// Verifier implementa auth.AuthVerifier usando Odin, con caché corta por token.
type Verifier struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedClaims
}

type cachedClaims struct {
	claims  auth.Claims
	expires time.Time
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{
		client: client,
		ttl:    DefaultClaimsTTL,
		now:    time.Now,
		cache:  make(map[string]cachedClaims),
	}
}

// WithTTL cambia la vigencia de la caché. ttl <= 0 la desactiva.
func (v *Verifier) WithTTL(ttl time.Duration) *Verifier {
	v.ttl = ttl
	return v
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrOdinNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	if c, ok := v.cached(token); ok {
		return c, nil
	}

	claims, err := v.client.VerifyToken(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("odin verify failed: %w", err)
	}

	claims.UserID = strings.TrimSpace(claims.UserID)
	if claims.UserID == "" {
		return auth.Claims{}, ErrMissingUser
	}
	// El device_id es la clave del calendario local: mismo dispositivo, mismo scope.
	claims.DeviceID = strings.ToLower(strings.TrimSpace(claims.DeviceID))

	v.store(token, claims)
	return claims, nil
}

func (v *Verifier) cached(token string) (auth.Claims, bool) {
	if v.ttl <= 0 {
		return auth.Claims{}, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	c, ok := v.cache[token]
	if !ok {
		return auth.Claims{}, false
	}
	if !v.now().Before(c.expires) {
		delete(v.cache, token)
		return auth.Claims{}, false
	}
	return c.claims, true
}

func (v *Verifier) store(token string, claims auth.Claims) {
	if v.ttl <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	for k, c := range v.cache {
		if !now.Before(c.expires) {
			delete(v.cache, k)
		}
	}
	v.cache[token] = cachedClaims{claims: claims, expires: now.Add(v.ttl)}
}
