package crossref_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mecadoi/internal/services"
	"mecadoi/internal/services/crossref"
)

const successPage = `<html><head><title>SUCCESS</title></head>
<body><h2>SUCCESS</h2><p>Your batch submission was successfully received.</p></body></html>`

const failurePage = `<html><head><title>FAILURE</title></head>
<body><h2>FAILURE</h2><p>Crossref   credentials were not recognized.</p></body></html>`

func newClient(t *testing.T, deposit, resolver string, opts ...crossref.Option) *crossref.Client {
	t.Helper()
	client, err := crossref.New(deposit, resolver, crossref.Credentials{Username: "user", Password: "secret"}, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestSubmitSendsMultipartUpload(t *testing.T) {
	var (
		gotOperation, gotUser, gotPassword, gotFilename string
		gotDocument                                     []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotOperation = r.FormValue("operation")
		gotUser = r.FormValue("login_id")
		gotPassword = r.FormValue("login_passwd")
		file, header, err := r.FormFile("fname")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		gotDocument, _ = io.ReadAll(file)
		fmt.Fprint(w, successPage)
	}))
	defer server.Close()

	client := newClient(t, server.URL, server.URL)
	result, err := client.Submit(context.Background(), "batch.xml", []byte("<doi_batch/>"))
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.Accepted || result.Status != "SUCCESS" {
		t.Fatalf("expected accepted SUCCESS, got %+v", result)
	}
	if len(result.Messages) != 1 || !strings.Contains(result.Messages[0], "successfully received") {
		t.Fatalf("unexpected messages %v", result.Messages)
	}
	if gotOperation != "doMDUpload" || gotUser != "user" || gotPassword != "secret" {
		t.Fatalf("unexpected form fields: %q %q %q", gotOperation, gotUser, gotPassword)
	}
	if gotFilename != "batch.xml" || string(gotDocument) != "<doi_batch/>" {
		t.Fatalf("unexpected file part %q %q", gotFilename, gotDocument)
	}
}

func TestSubmitFailurePageIsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, failurePage)
	}))
	defer server.Close()

	result, err := newClient(t, server.URL, server.URL).Submit(context.Background(), "", []byte("<x/>"))
	if err != nil {
		t.Fatalf("expected rejection without error, got %v", err)
	}
	if result.Accepted {
		t.Fatal("expected rejection")
	}
	if got := result.Summary(); got != "FAILURE: Crossref credentials were not recognized." {
		t.Fatalf("unexpected summary %q", got)
	}
	if !strings.Contains(result.RawResponse, "<h2>FAILURE</h2>") {
		t.Fatalf("expected raw response kept, got %q", result.RawResponse)
	}
}

func TestSubmitStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		transport bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, "<html><body><p>nope</p></body></html>")
			}))
			defer server.Close()

			result, err := newClient(t, server.URL, server.URL).Submit(context.Background(), "a.xml", []byte("<x/>"))
			if tc.transport {
				if !errors.Is(err, services.ErrTransport) {
					t.Fatalf("expected ErrTransport, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected rejection, got error %v", err)
			}
			if result.Accepted || result.HTTPStatus != tc.status {
				t.Fatalf("unexpected result %+v", result)
			}
		})
	}
}

func TestSubmitNetworkFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newClient(t, url, url).Submit(context.Background(), "a.xml", []byte("<x/>"))
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestSubmitTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newClient(t, server.URL, server.URL, crossref.WithTimeout(50*time.Millisecond))
	_, err := client.Submit(context.Background(), "a.xml", []byte("<x/>"))
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable timeout error, got %v", err)
	}
}

func TestSubmitRequiresCredentials(t *testing.T) {
	client, err := crossref.New("http://127.0.0.1:1", "http://127.0.0.1:1", crossref.Credentials{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Submit(context.Background(), "a.xml", nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewValidatesURLs(t *testing.T) {
	if _, err := crossref.New("", "http://x", crossref.Credentials{}); err == nil {
		t.Fatal("expected error for missing deposit url")
	}
	if _, err := crossref.New("http://x", " ", crossref.Credentials{}); err == nil {
		t.Fatal("expected error for missing resolver url")
	}
}
