package services_test

import (
	"errors"
	"strings"
	"testing"

	"mecadoi/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "crossref", "submit", "post failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"crossref", "submit", "post failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", services.Wrap(services.ErrTransport, "crossref", "verify", "", errors.New("reset")), true},
		{"timeout", services.Wrap(services.ErrTimeout, "crossref", "submit", "deadline", nil), true},
		{"not found", services.Wrap(services.ErrNotFound, "eeb-lookup", "articles", "no eeb article", nil), false},
		{"validation", services.Wrap(services.ErrValidation, "deposition", "generate", "", nil), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
