package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func resolveIdentity(r *http.Request) string {
	var got string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	})
	ResolveIdentity(inner).ServeHTTP(httptest.NewRecorder(), r)
	return got
}

func TestIdentityFromHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	r.Header.Set("X-Reader-ID", "reader-42")
	if got := resolveIdentity(r); got != "reader-42" {
		t.Fatalf("identity: got %q", got)
	}
}

func TestIdentityDerivedFromAPIKeyIsStable(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	r1.Header.Set("X-API-Key", "some-key")
	r2 := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	r2.Header.Set("Authorization", "Bearer some-key")

	id1 := resolveIdentity(r1)
	id2 := resolveIdentity(r2)
	if id1 == "" || id1 != id2 {
		t.Fatalf("derived identity not stable: %q vs %q", id1, id2)
	}
	if len(id1) != len("anon-")+16 {
		t.Fatalf("derived identity shape: %q", id1)
	}
}

func TestNoIdentityWithoutHeaderOrKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	if got := resolveIdentity(r); got != "" {
		t.Fatalf("identity: got %q, want empty", got)
	}
}
