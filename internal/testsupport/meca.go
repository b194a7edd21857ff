package testsupport

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// MECAAuthor describes a manuscript author in a fixture archive.
type MECAAuthor struct {
	Given         string
	Surname       string
	ORCID         string
	Authenticated bool
	Institution   string
	Corresponding bool
}

// MECAReview describes one referee report. Items are question/answer pairs.
type MECAReview struct {
	Assigned time.Time
	Items    [][2]string
}

// MECARevision describes one revision round.
type MECARevision struct {
	Revision    string
	Reviews     []MECAReview
	AuthorReply bool
}

// MECASpec controls the content of a fixture archive.
type MECASpec struct {
	Title       string
	DOI         string
	PreprintDOI string
	Journal     string
	Abstract    string
	Authors     []MECAAuthor
	Revisions   []MECARevision
	// NoReviewFile omits the review-metadata item entirely.
	NoReviewFile bool
	// NoManifest produces a zip without manifest.xml.
	NoManifest bool
}

// DefaultMECA returns a spec with one revision round holding two reviews and
// an author reply.
func DefaultMECA() MECASpec {
	return MECASpec{
		Title:       "A cellular atlas of regeneration",
		DOI:         "10.15252/embj.2022000001",
		PreprintDOI: "10.1101/2022.01.01.000001",
		Journal:     "Review Commons - TEST",
		Abstract:    "We map regeneration.",
		Authors: []MECAAuthor{
			{Given: "Ada", Surname: "Lovelace", ORCID: "https://orcid.org/0000-0000-0000-0001", Authenticated: true, Institution: "EMBL", Corresponding: true},
			{Given: "Alan", Surname: "Turing", Institution: "University of Manchester"},
		},
		Revisions: []MECARevision{
			{
				Revision: "0",
				Reviews: []MECAReview{
					{Assigned: time.Date(2022, 2, 3, 0, 0, 0, 0, time.UTC), Items: [][2]string{{"Evidence, reproducibility and clarity", "<p>Second reviewer.</p>"}}},
					{Assigned: time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC), Items: [][2]string{{"Significance", "<p>First reviewer.</p><p>Solid work.</p>"}}},
				},
				AuthorReply: true,
			},
		},
	}
}

// WriteMECA writes a MECA zip named name into dir and returns its path. The
// file modification time is set to receivedAt when non-zero.
func WriteMECA(t testing.TB, dir, name string, spec MECASpec, receivedAt time.Time) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	write := func(entry, content string) {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("zip entry %s: %v", entry, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", entry, err)
		}
	}

	if !spec.NoManifest {
		write("manifest.xml", manifestXML(spec))
	}
	write("content/article.xml", articleXML(spec))
	if !spec.NoReviewFile {
		write("content/reviews.xml", reviewsXML(spec))
	}
	for _, rev := range spec.Revisions {
		if rev.AuthorReply {
			write(fmt.Sprintf("content/reply-%s.pdf", rev.Revision), "%PDF-1.4")
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
	if !receivedAt.IsZero() {
		if err := os.Chtimes(path, receivedAt, receivedAt); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
	return path
}

// WriteFile writes raw bytes, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func manifestXML(spec MECASpec) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<manifest version="1.0">` + "\n")
	b.WriteString(`<item id="a1" type="article-metadata" version="0"><instance href="content/article.xml" media-type="application/xml"/></item>` + "\n")
	if !spec.NoReviewFile {
		b.WriteString(`<item id="r1" type="review-metadata" version="0"><instance href="content/reviews.xml" media-type="application/xml"/></item>` + "\n")
	}
	for _, rev := range spec.Revisions {
		if rev.AuthorReply {
			fmt.Fprintf(&b, `<item id="reply-%[1]s" type="Response to Reviewers" version="%[1]s"><instance href="content/reply-%[1]s.pdf" media-type="application/pdf"/></item>`+"\n", esc(rev.Revision))
		}
	}
	b.WriteString(`</manifest>`)
	return b.String()
}

func articleXML(spec MECASpec) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<article><front>`)
	fmt.Fprintf(&b, `<journal-meta><journal-title-group><journal-title>%s</journal-title></journal-title-group></journal-meta>`, esc(spec.Journal))
	b.WriteString(`<article-meta>`)
	if spec.DOI != "" {
		fmt.Fprintf(&b, `<article-id pub-id-type="doi">%s</article-id>`, esc(spec.DOI))
	}
	fmt.Fprintf(&b, `<title-group><article-title>%s</article-title></title-group>`, esc(spec.Title))
	b.WriteString(`<contrib-group>`)
	for i, a := range spec.Authors {
		corresp := ""
		if a.Corresponding {
			corresp = ` corresp="yes"`
		}
		fmt.Fprintf(&b, `<contrib contrib-type="author"%s>`, corresp)
		if a.ORCID != "" {
			use := ""
			if a.Authenticated {
				use = ` specific-use="authenticated"`
			}
			fmt.Fprintf(&b, `<contrib-id contrib-id-type="orcid"%s>%s</contrib-id>`, use, esc(a.ORCID))
		}
		fmt.Fprintf(&b, `<name><surname>%s</surname><given-names>%s</given-names></name>`, esc(a.Surname), esc(a.Given))
		if a.Institution != "" {
			fmt.Fprintf(&b, `<xref ref-type="aff" rid="aff%d"/>`, i+1)
		}
		b.WriteString(`</contrib>`)
	}
	for i, a := range spec.Authors {
		if a.Institution != "" {
			fmt.Fprintf(&b, `<aff id="aff%d"><institution>%s</institution></aff>`, i+1, esc(a.Institution))
		}
	}
	b.WriteString(`</contrib-group>`)
	if spec.Abstract != "" {
		fmt.Fprintf(&b, `<abstract><p>%s</p></abstract>`, esc(spec.Abstract))
	}
	b.WriteString(`<custom-meta-group>`)
	b.WriteString(`<custom-meta><meta-name>Manuscript Type</meta-name><meta-value>Research Article</meta-value></custom-meta>`)
	if spec.PreprintDOI != "" {
		fmt.Fprintf(&b, `<custom-meta><meta-name>Pre-existing BioRxiv Preprint DOI</meta-name><meta-value>%s</meta-value></custom-meta>`, esc(spec.PreprintDOI))
	}
	b.WriteString(`</custom-meta-group>`)
	b.WriteString(`</article-meta></front></article>`)
	return b.String()
}

func reviewsXML(spec MECASpec) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<review-group>`)
	for _, rev := range spec.Revisions {
		fmt.Fprintf(&b, `<version revision="%s">`, esc(rev.Revision))
		for i, r := range rev.Reviews {
			b.WriteString(`<review>`)
			fmt.Fprintf(&b, `<contrib-group><contrib contrib-type="reviewer"><name><surname>Referee %d</surname><given-names>Anonymous</given-names></name></contrib></contrib-group>`, i+1)
			fmt.Fprintf(&b, `<history><date date-type="assigned"><day>%d</day><month>%d</month><year>%d</year></date></history>`,
				r.Assigned.Day(), int(r.Assigned.Month()), r.Assigned.Year())
			b.WriteString(`<review-item-group>`)
			for _, item := range r.Items {
				fmt.Fprintf(&b, `<review-item><review-item-question><alt-title>%s</alt-title></review-item-question><review-item-response><text>%s</text></review-item-response></review-item>`,
					esc(item[0]), esc(item[1]))
			}
			b.WriteString(`</review-item-group></review>`)
		}
		b.WriteString(`</version>`)
	}
	b.WriteString(`</review-group>`)
	return b.String()
}
