package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mikradb/pkg/logger"
)

func init() { logger.Init() }

func TestFetchFlattensNestedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/texts/Psalms 23" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"ref":"Psalms 23","book":"Psalms","text":[["verse one","verse two"],["verse three"]]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	units, err := c.Fetch(context.Background(), "Psalms 23")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []string{"verse one", "verse two", "verse three"}
	if len(units) != len(want) {
		t.Fatalf("Fetch units: got %v want %v", units, want)
	}
	for i := range want {
		if units[i] != want[i] {
			t.Fatalf("Fetch unit %d: got %q want %q", i, units[i], want[i])
		}
	}
}

func TestFetchStringText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ref":"Liturgy 1","text":"a single <b>block</b>"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	units, err := c.Fetch(context.Background(), "Liturgy 1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(units) != 1 || units[0] != "a single block" {
		t.Fatalf("Fetch: got %v", units)
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	if _, err := c.Fetch(context.Background(), "Nope 1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch missing ref: got %v, want ErrNotFound", err)
	}
}

func TestFetchEmptyResultIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ref":"Empty 1","text":["<br/>","  "]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Options{})
	if _, err := c.Fetch(context.Background(), "Empty 1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch empty text: got %v, want ErrNotFound", err)
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ref":"Psalms 1","text":["ok"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Options{Retries: 2})
	units, err := c.Fetch(context.Background(), "Psalms 1")
	if err != nil {
		t.Fatalf("Fetch with retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", calls)
	}
	if len(units) != 1 || units[0] != "ok" {
		t.Fatalf("Fetch: got %v", units)
	}
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{Retries: 3})
	if _, err := c.Fetch(context.Background(), "Nope 1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch: got %v", err)
	}
	if calls != 1 {
		t.Fatalf("404 should not be retried, got %d calls", calls)
	}
}
