package meca_test

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mecadoi/internal/meca"
	"mecadoi/internal/testsupport"
)

func TestParseExtractsManuscript(t *testing.T) {
	path := testsupport.WriteMECA(t, t.TempDir(), "full.zip", testsupport.DefaultMECA(), time.Time{})

	m, err := meca.Parse(path)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if m.Title != "A cellular atlas of regeneration" {
		t.Fatalf("unexpected title: %q", m.Title)
	}
	if m.PreprintDOI != "10.1101/2022.01.01.000001" {
		t.Fatalf("unexpected preprint doi: %q", m.PreprintDOI)
	}
	if m.DOI != "10.15252/embj.2022000001" {
		t.Fatalf("unexpected doi: %q", m.DOI)
	}
	if m.Journal != "Review Commons - TEST" {
		t.Fatalf("unexpected journal: %q", m.Journal)
	}
	if m.Abstract != "We map regeneration." {
		t.Fatalf("unexpected abstract: %q", m.Abstract)
	}
	if len(m.Authors) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(m.Authors))
	}
	first := m.Authors[0]
	if first.Surname != "Lovelace" || first.GivenName != "Ada" || !first.Corresponding {
		t.Fatalf("unexpected first author: %+v", first)
	}
	if first.ORCID == nil || !first.ORCID.Authenticated || first.ORCID.ID != "https://orcid.org/0000-0000-0000-0001" {
		t.Fatalf("unexpected orcid: %+v", first.ORCID)
	}
	if first.Affiliation != "EMBL" {
		t.Fatalf("unexpected affiliation: %q", first.Affiliation)
	}
	if m.Authors[1].ORCID != nil {
		t.Fatalf("expected no orcid for second author")
	}

	if len(m.ReviewProcess) != 1 {
		t.Fatalf("expected one revision round, got %d", len(m.ReviewProcess))
	}
	round := m.ReviewProcess[0]
	if round.RevisionID != "0" {
		t.Fatalf("unexpected revision id: %q", round.RevisionID)
	}
	if len(round.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(round.Reviews))
	}
	// Reviews are ordered by assignment date, not document order.
	if round.Reviews[0].RunningNumber != 1 || round.Reviews[0].Items[0].Question != "Significance" {
		t.Fatalf("unexpected first review: %+v", round.Reviews[0])
	}
	if got := round.Reviews[0].Items[0].Answer; got != "First reviewer.\n\nSolid work." {
		t.Fatalf("unexpected answer text: %q", got)
	}
	if round.Reviews[1].RunningNumber != 2 || round.Reviews[1].Items[0].Answer != "Second reviewer." {
		t.Fatalf("unexpected second review: %+v", round.Reviews[1])
	}
	if round.AuthorReply == nil || len(round.AuthorReply.Authors) != 2 {
		t.Fatalf("expected author reply by manuscript authors, got %+v", round.AuthorReply)
	}
	if !m.HasReviews() {
		t.Fatal("expected HasReviews")
	}
}

func TestParseWithoutReviewMetadata(t *testing.T) {
	spec := testsupport.DefaultMECA()
	spec.NoReviewFile = true
	spec.Revisions = nil
	path := testsupport.WriteMECA(t, t.TempDir(), "no-reviews.zip", spec, time.Time{})

	m, err := meca.Parse(path)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if m.ReviewProcess != nil {
		t.Fatalf("expected nil review process, got %+v", m.ReviewProcess)
	}
	if m.HasReviews() {
		t.Fatal("expected HasReviews to be false")
	}
}

func TestParseWithoutPreprintDOI(t *testing.T) {
	spec := testsupport.DefaultMECA()
	spec.PreprintDOI = ""
	path := testsupport.WriteMECA(t, t.TempDir(), "no-doi.zip", spec, time.Time{})

	m, err := meca.Parse(path)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if m.PreprintDOI != "" {
		t.Fatalf("expected empty preprint doi, got %q", m.PreprintDOI)
	}
}

func TestParseNormalizesUnicode(t *testing.T) {
	spec := testsupport.DefaultMECA()
	spec.Title = "  Cafe\u0301 & cells\n"
	path := testsupport.WriteMECA(t, t.TempDir(), "unicode.zip", spec, time.Time{})

	m, err := meca.Parse(path)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if m.Title != "Caf\u00e9 & cells" {
		t.Fatalf("unexpected title: %q", m.Title)
	}
}

func TestParseInvalidArchives(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "plain.zip")
	testsupport.WriteFile(t, notZip, []byte("not a zip"))

	spec := testsupport.DefaultMECA()
	spec.NoManifest = true
	noManifest := testsupport.WriteMECA(t, dir, "no-manifest.zip", spec, time.Time{})

	noArticle := filepath.Join(dir, "no-article.zip")
	f, err := os.Create(noArticle)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("manifest.xml")
	_, _ = w.Write([]byte(`<manifest><item id="x" type="transfer-metadata"><instance href="transfer.xml"/></item></manifest>`))
	_ = zw.Close()
	_ = f.Close()

	for _, path := range []string{notZip, noManifest, noArticle, filepath.Join(dir, "missing.zip")} {
		if _, err := meca.Parse(path); !errors.Is(err, meca.ErrInvalidArchive) {
			t.Fatalf("%s: expected ErrInvalidArchive, got %v", filepath.Base(path), err)
		}
	}
}

func TestArchiveItems(t *testing.T) {
	path := testsupport.WriteMECA(t, t.TempDir(), "items.zip", testsupport.DefaultMECA(), time.Time{})
	archive, err := meca.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer archive.Close()

	if got := len(archive.Items()); got != 3 {
		t.Fatalf("expected 3 manifest items, got %d", got)
	}
	replies := archive.ItemsOfType(meca.ItemTypeAuthorReply)
	if len(replies) != 1 || replies[0].Version != "0" || replies[0].MediaType != "application/pdf" {
		t.Fatalf("unexpected reply items: %+v", replies)
	}
}
