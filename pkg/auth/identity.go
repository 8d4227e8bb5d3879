package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior. Put here so limiter.go
// and gateway.go can reference the shared type.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
	AllowUnauth    bool
}

type ctxIdentityKey struct{}

// ResolveIdentity injects the reader identity into the request context: the
// X-Reader-ID header when present, otherwise a stable hash of the API key so
// anonymous devices still accumulate progress under one identity.
func ResolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Reader-ID"))
		if id == "" {
			if key := apiKey(r); key != "" {
				sum := sha256.Sum256([]byte(key))
				id = "anon-" + hex.EncodeToString(sum[:8])
			}
		}
		if id != "" {
			ctx := context.WithValue(r.Context(), ctxIdentityKey{}, id)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the resolved reader identity, or "".
func IdentityFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxIdentityKey{}).(string); ok {
		return v
	}
	return ""
}

// apiKey extracts the API key from Authorization: Bearer or X-API-Key.
func apiKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if k := strings.TrimSpace(auth[7:]); k != "" {
			return k
		}
	}
	return r.Header.Get("X-API-Key")
}
