package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mecadoi/internal/store"
	"mecadoi/internal/testsupport"
	"mecadoi/internal/workflow"
)

func TestParseClassifiesArchives(t *testing.T) {
	h := newHarness(t, nil)

	noReview := testsupport.DefaultMECA()
	noReview.PreprintDOI = "10.1101/2022.02.02.000002"
	noReview.NoReviewFile = true
	noPreprint := testsupport.DefaultMECA()
	noPreprint.PreprintDOI = ""

	h.addArchive(t, "a-ready.zip", preprintSpec("10.1101/2022.01.01.000001"), day(2022, 3, 1))
	h.addArchive(t, "b-duplicate.zip", preprintSpec("10.1101/2022.01.01.000001"), day(2022, 3, 2))
	h.addArchive(t, "c-no-review.zip", noReview, day(2022, 3, 3))
	h.addArchive(t, "d-no-preprint.zip", noPreprint, day(2022, 3, 4))
	testsupport.WriteFile(t, filepath.Join(h.inbox, "notes.txt"), []byte("not an archive"))

	report := h.parse(t)

	want := map[string]store.State{
		"a-ready":       store.StateReadyForDeposit,
		"b-duplicate":   store.StateDuplicate,
		"c-no-review":   store.StateNoReview,
		"d-no-preprint": store.StateNoPreprintDOI,
	}
	if len(report.Archives) != len(want) {
		t.Fatalf("expected %d archives, got %+v", len(want), report.Archives)
	}
	for id, state := range want {
		if got := h.state(t, id); got != state {
			t.Errorf("%s: expected %s, got %s", id, state, got)
		}
	}
	if len(report.Invalid) != 1 || !strings.HasSuffix(report.Invalid[0].Path, "notes.txt") {
		t.Fatalf("expected notes.txt reported invalid, got %+v", report.Invalid)
	}
	if _, err := h.store.Get(context.Background(), "notes"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("invalid archive must not be stored, got %v", err)
	}

	grouped := report.Grouped()
	if len(grouped["ready_for_deposit"]) != 1 || !strings.HasSuffix(grouped["ready_for_deposit"][0], "|10.1101/2022.01.01.000001") {
		t.Fatalf("unexpected ready group: %v", grouped["ready_for_deposit"])
	}
	if len(grouped["invalid"]) != 1 {
		t.Fatalf("expected one invalid entry, got %v", grouped["invalid"])
	}
}

func TestParseRecordsModificationTimeAsReceipt(t *testing.T) {
	h := newHarness(t, nil)
	h.addArchive(t, "received.zip", testsupport.DefaultMECA(), day(2022, 5, 1))
	h.parse(t)

	rec, err := h.store.Get(context.Background(), "received")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !rec.ReceivedAt.Equal(day(2022, 5, 1)) {
		t.Fatalf("expected receipt date from mtime, got %s", rec.ReceivedAt)
	}
	if rec.ManuscriptJSON == "" {
		t.Fatal("expected manuscript snapshot to be stored")
	}
}

func TestStageInputMovesInbox(t *testing.T) {
	h := newHarness(t, nil)
	h.addArchive(t, "one.zip", testsupport.DefaultMECA(), day(2022, 3, 1))
	testsupport.WriteFile(t, filepath.Join(h.inbox, "nested", "two.zip"), []byte("junk"))

	dir, files, err := workflow.StageInput(h.inbox, h.outDir, "run-1")
	if err != nil {
		t.Fatalf("StageInput: %v", err)
	}
	if dir != filepath.Join(h.outDir, "parsed", "run-1") {
		t.Fatalf("unexpected staging dir %s", dir)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 staged files, got %v", files)
	}
	entries, err := os.ReadDir(h.inbox)
	if err != nil {
		t.Fatalf("inbox not recreated: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty inbox, got %d entries", len(entries))
	}
}

func TestReparseDoesNotRewindDepositedArchive(t *testing.T) {
	h := newHarness(t, nil)
	h.addArchive(t, "again.zip", testsupport.DefaultMECA(), day(2022, 3, 1))
	h.parse(t)
	h.deposit(t, workflow.Options{})
	if got := h.state(t, "again"); got != store.StateDepositionSucceeded {
		t.Fatalf("expected success, got %s", got)
	}

	h.addArchive(t, "again.zip", testsupport.DefaultMECA(), day(2022, 3, 1))
	report := h.parse(t)
	if len(report.Archives) != 1 || report.Archives[0].State != store.StateDepositionSucceeded {
		t.Fatalf("expected reparse to keep success, got %+v", report.Archives)
	}
}

func TestArchiveID(t *testing.T) {
	if got := workflow.ArchiveID("/tmp/x/abc-123.zip"); got != "abc-123" {
		t.Fatalf("unexpected id %q", got)
	}
}
