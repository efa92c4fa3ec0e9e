package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func authServers(t *testing.T, backendStatus int) (backend, idp *httptest.Server) {
	t.Helper()
	backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(backendStatus)
		if backendStatus == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"token": "backend-token"})
		}
	}))
	t.Cleanup(backend.Close)

	idp = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "idp-token"})
	}))
	t.Cleanup(idp.Close)
	return backend, idp
}

func TestLoginBackendOnly(t *testing.T) {
	backend, idp := authServers(t, http.StatusUnauthorized)
	c := New(Config{BaseURL: backend.URL, IdPBaseURL: idp.URL, Strategy: AuthBackend})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("backend-only strategy must not fall back, got err=%v", err)
	}
}

func TestLoginFallsBackToIdPOnRejection(t *testing.T) {
	backend, idp := authServers(t, http.StatusUnauthorized)
	c := New(Config{BaseURL: backend.URL, IdPBaseURL: idp.URL, Strategy: AuthBackendThenIdP})

	tok, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("expected fallback login to succeed: %v", err)
	}
	if tok != "idp-token" {
		t.Fatalf("got token %q, want idp-token", tok)
	}
}

func TestLoginPrefersBackendWhenItAccepts(t *testing.T) {
	backend, idp := authServers(t, http.StatusOK)
	c := New(Config{BaseURL: backend.URL, IdPBaseURL: idp.URL, Strategy: AuthBackendThenIdP})

	tok, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok != "backend-token" {
		t.Fatalf("got token %q, want backend-token", tok)
	}
}

func TestLoginDoesNotFallBackOnTransportFailure(t *testing.T) {
	backend, idp := authServers(t, http.StatusOK)
	backend.Close() // connection refused: not a rejection, no fallback

	c := New(Config{BaseURL: backend.URL, IdPBaseURL: idp.URL, Strategy: AuthBackendThenIdP})
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
	if errors.Is(err, ErrStatus) {
		t.Fatalf("transport failure misclassified as rejection: %v", err)
	}
}

func TestBearerTokenInjection(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, "[]")
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:     srv.URL,
		TokenSource: func() (string, bool) { return "tok-xyz", true },
	})
	if _, err := c.ListBots(context.Background()); err != nil {
		t.Fatalf("list bots: %v", err)
	}
	if gotAuth != "Bearer tok-xyz" {
		t.Fatalf("got Authorization %q", gotAuth)
	}
}
