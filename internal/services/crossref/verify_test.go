package crossref_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mecadoi/internal/services"
)

func resolverServer(t *testing.T, known map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doi := strings.TrimPrefix(r.URL.Path, "/api/handles/")
		w.Header().Set("Content-Type", "application/json")
		if known[doi] {
			fmt.Fprintf(w, `{"responseCode":1,"handle":%q}`, doi)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"responseCode":100,"handle":%q}`, doi)
	}))
}

func TestVerifyAllResolve(t *testing.T) {
	dois := []string{"10.15252/rc.2022000001", "10.15252/rc.2022000002"}
	server := resolverServer(t, map[string]bool{dois[0]: true, dois[1]: true})
	defer server.Close()

	result, err := newClient(t, server.URL, server.URL+"/api/handles/").Verify(context.Background(), dois)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.OK() || len(result.Matched) != 2 {
		t.Fatalf("expected all DOIs matched, got %+v", result)
	}
}

func TestVerifyFourOfFiveIsNotOK(t *testing.T) {
	dois := []string{"10.1/a", "10.1/b", "10.1/c", "10.1/d", "10.1/e"}
	known := map[string]bool{}
	for _, d := range dois[:4] {
		known[d] = true
	}
	server := resolverServer(t, known)
	defer server.Close()

	result, err := newClient(t, server.URL, server.URL+"/api/handles").Verify(context.Background(), dois)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.OK() {
		t.Fatal("expected verification mismatch")
	}
	if len(result.Matched) != 4 || len(result.Missing) != 1 || result.Missing[0] != "10.1/e" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(result.Summary(), "4 of 5") {
		t.Fatalf("unexpected summary %q", result.Summary())
	}
}

func TestVerifyResolverFailureIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, server.URL).Verify(context.Background(), []string{"10.1/a"})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestVerifyEmptyIsNotOK(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	result, err := client.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.OK() {
		t.Fatal("expected empty verification to fail")
	}
}
