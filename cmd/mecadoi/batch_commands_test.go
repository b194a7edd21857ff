package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mecadoi/internal/testsupport"
)

var receivedAt = time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)

func (env *cliTestEnv) parseDefaultArchive(t *testing.T) {
	t.Helper()
	testsupport.WriteMECA(t, env.inbox, "article.zip", testsupport.DefaultMECA(), receivedAt)
	out, _, err := runCLI(t, []string{"batch", "parse", env.inbox, "-o", env.outDir}, env.configPath)
	if err != nil {
		t.Fatalf("batch parse: %v", err)
	}
	requireContains(t, out, "ready_for_deposit:")
	requireContains(t, out, "|"+testsupport.DefaultMECA().PreprintDOI)
}

func TestBatchParseAndDryRunDeposit(t *testing.T) {
	env := setupCLITestEnv(t)
	env.parseDefaultArchive(t)

	entries, err := os.ReadDir(env.inbox)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty inbox after parse, got %d entries (%v)", len(entries), err)
	}

	out, _, err := runCLI(t, []string{"batch", "deposit", "-o", env.outDir}, env.configPath)
	if err != nil {
		t.Fatalf("batch deposit: %v", err)
	}
	requireContains(t, out, "dry_run: true")
	requireContains(t, out, "submitted:")
	if env.crossref.uploads != 0 {
		t.Fatal("dry run must not upload")
	}
	if _, err := os.Stat(filepath.Join(env.outDir, "deposited")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not write a deposited report, got %v", err)
	}

	out, _, err = runCLI(t, []string{"batch", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("batch list: %v", err)
	}
	requireContains(t, out, "article")
	requireContains(t, out, "READY_FOR_DEPOSIT")
}

func TestBatchDepositSubmitsAndPrunes(t *testing.T) {
	env := setupCLITestEnv(t)
	env.parseDefaultArchive(t)

	out, _, err := runCLI(t, []string{"batch", "deposit", "-o", env.outDir, "--no-dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("batch deposit: %v\n%s", err, out)
	}
	requireContains(t, out, "dry_run: false")
	requireContains(t, out, "deposition_succeeded:")
	requireContains(t, out, "deposited_report:")
	reports, _ := filepath.Glob(filepath.Join(env.outDir, "deposited", "*.yml"))
	if len(reports) != 1 {
		t.Fatalf("expected one deposited report, got %v", reports)
	}

	out, _, err = runCLI(t, []string{"batch", "show", "article"}, env.configPath)
	if err != nil {
		t.Fatalf("batch show: %v", err)
	}
	requireContains(t, out, "DEPOSITION_SUCCEEDED")
	requireContains(t, out, "accepted")
	requireContains(t, out, "verified")
	requireContains(t, out, "3/3")

	out, _, err = runCLI(t, []string{"batch", "list", "--state", "deposition_succeeded"}, env.configPath)
	if err != nil {
		t.Fatalf("batch list: %v", err)
	}
	requireContains(t, out, "article")

	out, _, err = runCLI(t, []string{"batch", "prune", "--no-dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("batch prune: %v", err)
	}
	requireContains(t, out, "article.zip")
	staged, _ := filepath.Glob(filepath.Join(env.outDir, "parsed", "*", "article.zip"))
	if len(staged) != 0 {
		t.Fatalf("expected archive pruned, still have %v", staged)
	}
}

func TestBatchDepositFailureExitStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	env.parseDefaultArchive(t)
	env.crossref.reject = true

	out, _, err := runCLI(t, []string{"batch", "deposit", "-o", env.outDir, "--no-dry-run"}, env.configPath)
	if !errors.Is(err, errArchivesFailed) {
		t.Fatalf("expected errArchivesFailed, got %v", err)
	}
	requireContains(t, out, "deposition_failed:")

	out, _, err = runCLI(t, []string{"batch", "reset", "article"}, env.configPath)
	if err == nil {
		t.Fatal("reset must refuse DEPOSITION_FAILED")
	}
	requireContains(t, out, "state conflict")

	out, _, err = runCLI(t, []string{"batch", "acknowledge", "article.zip"}, env.configPath)
	if err != nil {
		t.Fatalf("batch acknowledge: %v", err)
	}
	requireContains(t, out, "acknowledged in DEPOSITION_FAILED")

	env.crossref.reject = false
	out, _, err = runCLI(t, []string{"batch", "deposit", "-o", env.outDir, "--no-dry-run", "--retry-failed"}, env.configPath)
	if err != nil {
		t.Fatalf("retry deposit: %v\n%s", err, out)
	}
	requireContains(t, out, "deposition_succeeded:")
}

func TestBatchDepositRejectsBadDates(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"batch", "deposit", "-o", env.outDir, "--after", "01/04/2022"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "--after") {
		t.Fatalf("expected --after error, got %v", err)
	}
}

func TestBatchDepositFlagsAreExclusive(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"batch", "deposit", "-o", env.outDir, "--dry-run", "--no-dry-run"}, env.configPath)
	if err == nil {
		t.Fatal("expected conflicting dry-run flags to fail")
	}
}

func TestBatchListRejectsUnknownState(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"batch", "list", "--state", "LOST"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown state") {
		t.Fatalf("expected unknown state error, got %v", err)
	}
}
