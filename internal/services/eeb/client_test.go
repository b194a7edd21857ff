package eeb_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mecadoi/internal/services"
	"mecadoi/internal/services/eeb"
)

func TestCheckReportsAssignedDOIs(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `[{"doi":"10.1101/x","review_process":{
			"reviews":[{"doi":"10.15252/rc.2022000001"},{"doi":""},{"doi":"10.15252/rc.2022000002"}],
			"response":{"doi":"10.15252/rc.2022000003"}}}]`)
	}))
	defer server.Close()

	client, err := eeb.New(server.URL + "/api/v1/")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	check, err := client.Check(context.Background(), "10.1101/x", eeb.Expectation{Reviews: 3, AuthorReply: true})
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if gotPath != "/api/v1/doi/10.1101/x" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !check.Consistent() {
		t.Fatalf("expected matching counts, got %+v", check)
	}
	want := []string{"10.15252/rc.2022000001", "10.15252/rc.2022000002", "10.15252/rc.2022000003"}
	if fmt.Sprint(check.AssignedDOIs) != fmt.Sprint(want) {
		t.Fatalf("got %v want %v", check.AssignedDOIs, want)
	}
	if problem := check.Problem(); !strings.Contains(problem, "DOIs already assigned") {
		t.Fatalf("expected assigned DOIs in problem, got %q", problem)
	}
}

func TestCheckComparesReviewProcess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doi/10.1101/missing":
			http.NotFound(w, r)
		case "/doi/10.1101/twice":
			fmt.Fprint(w, `[{"review_process":{"reviews":[]}},{"review_process":{"reviews":[]}}]`)
		default:
			fmt.Fprint(w, `[{"review_process":{"reviews":[{"doi":null},{"doi":null}],"response":{"doi":null}}}]`)
		}
	}))
	defer server.Close()

	client, err := eeb.New(server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	cases := []struct {
		name     string
		preprint string
		want     eeb.Expectation
		problem  string
	}{
		{"matching", "10.1101/x", eeb.Expectation{Reviews: 2, AuthorReply: true}, ""},
		{"fewer reviews", "10.1101/x", eeb.Expectation{Reviews: 3, AuthorReply: true}, "EEB has 2 reviews"},
		{"no reply deposited", "10.1101/x", eeb.Expectation{Reviews: 2}, "and an author reply"},
		{"unknown preprint", "10.1101/missing", eeb.Expectation{Reviews: 2, AuthorReply: true}, "received 0 results"},
		{"two articles", "10.1101/twice", eeb.Expectation{Reviews: 2, AuthorReply: true}, "received 2 results"},
	}
	for _, tc := range cases {
		check, err := client.Check(context.Background(), tc.preprint, tc.want)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if len(check.AssignedDOIs) != 0 {
			t.Fatalf("%s: expected no assigned DOIs, got %v", tc.name, check.AssignedDOIs)
		}
		problem := check.Problem()
		if tc.problem == "" {
			if problem != "" || !check.Consistent() {
				t.Fatalf("%s: expected consistent check, got %q", tc.name, problem)
			}
			continue
		}
		if !strings.Contains(problem, tc.problem) {
			t.Fatalf("%s: problem %q does not mention %q", tc.name, problem, tc.problem)
		}
	}
}

func TestArticlesUnknownPreprintIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	client, err := eeb.New(server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.Articles(context.Background(), "10.1101/missing")
	if !errors.Is(err, services.ErrNotFound) || services.IsRetryable(err) {
		t.Fatalf("expected non-retryable ErrNotFound, got %v", err)
	}
}

func TestArticlesServerErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := eeb.New(server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Articles(context.Background(), "10.1101/x"); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if _, err := client.Articles(context.Background(), " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
