// Package article builds the in-memory model a deposition is rendered from:
// an Article with its revision rounds and the review events in each round.
package article

import (
	"errors"
	"strings"
	"time"

	"mecadoi/internal/meca"
)

var (
	// ErrNoPreprintDOI means the manuscript carries no preprint DOI to anchor
	// review DOIs on.
	ErrNoPreprintDOI = errors.New("no preprint DOI")
	// ErrNoReview means the manuscript has no review events at all.
	ErrNoReview = errors.New("no review")
)

// Kind is the Crossref peer_review type of an event.
type Kind string

const (
	KindRefereeReport Kind = "referee-report"
	KindAuthorReply   Kind = "author-comment"
)

// Article is the deposition view of one manuscript.
type Article struct {
	ID          string
	Title       string
	PreprintDOI string
	Journal     string
	Authors     []meca.Author
	Revisions   []Revision
}

// Revision is one review round. Index is 0-based in receipt order.
type Revision struct {
	Index    int
	SourceID string
	Events   []ReviewEvent
}

// ReviewEvent is a referee report or the author reply of a round. Running
// numbers are 1-based per revision; the reply follows the last report.
type ReviewEvent struct {
	Kind          Kind
	RunningNumber int
	Authors       []meca.Author
	Sections      []meca.ReviewItem
	Date          time.Time
}

// Options supplies what the manuscript itself does not carry.
type Options struct {
	// ArchiveName is used as the article id when the preprint DOI has no suffix.
	ArchiveName string
	// ReceivedAt becomes the date of every review event.
	ReceivedAt time.Time
}

// Check classifies a manuscript without building it. It returns
// ErrNoPreprintDOI before ErrNoReview when both apply.
func Check(m *meca.Manuscript) error {
	if m == nil || strings.TrimSpace(m.PreprintDOI) == "" {
		return ErrNoPreprintDOI
	}
	if !m.HasReviews() {
		return ErrNoReview
	}
	return nil
}

// Status is the parse-time classification of a manuscript. Its values match
// the lifecycle states the store records.
type Status string

const (
	StatusNoPreprintDOI   Status = "NO_PREPRINT_DOI"
	StatusNoReview        Status = "NO_REVIEW"
	StatusReadyForDeposit Status = "READY_FOR_DEPOSIT"
)

// Classify maps a manuscript to the state it enters when first parsed.
func Classify(m *meca.Manuscript) Status {
	switch err := Check(m); {
	case errors.Is(err, ErrNoPreprintDOI):
		return StatusNoPreprintDOI
	case errors.Is(err, ErrNoReview):
		return StatusNoReview
	default:
		return StatusReadyForDeposit
	}
}

// Build converts a parsed manuscript into an Article. It has no side effects
// and returns equal output for equal input.
func Build(m *meca.Manuscript, opts Options) (*Article, error) {
	if err := Check(m); err != nil {
		return nil, err
	}
	preprint := strings.TrimSpace(m.PreprintDOI)
	a := &Article{
		ID:          articleID(preprint, opts.ArchiveName),
		Title:       m.Title,
		PreprintDOI: preprint,
		Journal:     m.Journal,
		Authors:     copyAuthors(m.Authors),
		Revisions:   make([]Revision, 0, len(m.ReviewProcess)),
	}
	date := opts.ReceivedAt.UTC()
	for idx, round := range m.ReviewProcess {
		rev := Revision{Index: idx, SourceID: round.RevisionID}
		for _, review := range round.Reviews {
			rev.Events = append(rev.Events, ReviewEvent{
				Kind:          KindRefereeReport,
				RunningNumber: len(rev.Events) + 1,
				Sections:      append([]meca.ReviewItem(nil), review.Items...),
				Date:          date,
			})
		}
		if round.AuthorReply != nil {
			rev.Events = append(rev.Events, ReviewEvent{
				Kind:          KindAuthorReply,
				RunningNumber: len(rev.Events) + 1,
				Authors:       copyAuthors(round.AuthorReply.Authors),
				Date:          date,
			})
		}
		a.Revisions = append(a.Revisions, rev)
	}
	return a, nil
}

// EventCount returns the number of review events across all revisions.
func (a *Article) EventCount() int {
	n := 0
	for _, rev := range a.Revisions {
		n += len(rev.Events)
	}
	return n
}

// Reviews returns the referee reports of the revision.
func (r Revision) Reviews() []ReviewEvent {
	var out []ReviewEvent
	for _, ev := range r.Events {
		if ev.Kind == KindRefereeReport {
			out = append(out, ev)
		}
	}
	return out
}

func articleID(preprintDOI, archiveName string) string {
	if idx := strings.LastIndex(preprintDOI, "/"); idx >= 0 && idx < len(preprintDOI)-1 {
		return preprintDOI[idx+1:]
	}
	if name := strings.TrimSpace(archiveName); name != "" {
		return name
	}
	return preprintDOI
}

func copyAuthors(in []meca.Author) []meca.Author {
	if len(in) == 0 {
		return nil
	}
	out := make([]meca.Author, len(in))
	for i, a := range in {
		out[i] = a
		if a.ORCID != nil {
			orcid := *a.ORCID
			out[i].ORCID = &orcid
		}
	}
	return out
}
