package workflow_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mecadoi/internal/config"
	"mecadoi/internal/deposition"
	"mecadoi/internal/logging"
	"mecadoi/internal/services"
	"mecadoi/internal/services/crossref"
	"mecadoi/internal/services/eeb"
	"mecadoi/internal/store"
	"mecadoi/internal/testsupport"
	"mecadoi/internal/workflow"
)

var fixedNow = time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeCrossref registers every accepted DOI and resolves them back, except
// the last hide DOIs of each verification request.
type fakeCrossref struct {
	mu          sync.Mutex
	submissions int
	reject      bool
	submitErr   error
	// lostAnswer registers the DOIs but fails the submission as if the
	// response never arrived.
	lostAnswer bool
	verifyErr  error
	hide       int
	registered map[string]bool
}

func (f *fakeCrossref) Submit(_ context.Context, _ string, document []byte) (crossref.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions++
	if f.submitErr != nil {
		return crossref.SubmissionResult{}, f.submitErr
	}
	if f.reject {
		return crossref.SubmissionResult{
			HTTPStatus:  200,
			Status:      "FAILURE",
			Messages:    []string{"batch rejected"},
			RawResponse: "<html><h2>FAILURE</h2></html>",
		}, nil
	}
	dois, err := deposition.ExtractDOIs(document)
	if err != nil {
		return crossref.SubmissionResult{}, err
	}
	if f.registered == nil {
		f.registered = make(map[string]bool)
	}
	for _, d := range dois {
		f.registered[d] = true
	}
	if f.lostAnswer {
		return crossref.SubmissionResult{}, fmt.Errorf("%w: read response: connection reset", services.ErrTransport)
	}
	return crossref.SubmissionResult{Accepted: true, HTTPStatus: 200, Status: "SUCCESS", RawResponse: "<html><h2>SUCCESS</h2></html>"}, nil
}

func (f *fakeCrossref) Verify(_ context.Context, dois []string) (crossref.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return crossref.VerificationResult{}, f.verifyErr
	}
	res := crossref.VerificationResult{Expected: dois}
	for i, d := range dois {
		if f.registered[d] && i < len(dois)-f.hide {
			res.Matched = append(res.Matched, d)
		} else {
			res.Missing = append(res.Missing, d)
		}
	}
	return res, nil
}

func (f *fakeCrossref) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissions
}

// fakePresence answers like an EEB that lists exactly the deposited reviews,
// with dois already assigned to them.
type fakePresence struct {
	dois []string
	err  error
}

func (p *fakePresence) Check(_ context.Context, preprintDOI string, want eeb.Expectation) (eeb.Check, error) {
	if p.err != nil {
		return eeb.Check{}, p.err
	}
	return eeb.Check{
		PreprintDOI:  preprintDOI,
		Expected:     want,
		Articles:     1,
		Reviews:      want.Reviews,
		AuthorReply:  want.AuthorReply,
		AssignedDOIs: p.dois,
	}, nil
}

// idQueue hands out queued ids first, then numbered ones.
type idQueue struct {
	mu    sync.Mutex
	queue []string
	n     int
}

func (q *idQueue) next() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) > 0 {
		id := q.queue[0]
		q.queue = q.queue[1:]
		return id
	}
	q.n++
	return fmt.Sprintf("id-%d", q.n)
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	runner   *workflow.Runner
	crossref *fakeCrossref
	ids      *idQueue
	inbox    string
	outDir   string
	runs     int
}

func newHarness(t *testing.T, tune func(*config.Config), opts ...workflow.Option) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if tune != nil {
		tune(cfg)
	}
	h := &harness{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		crossref: &fakeCrossref{},
		ids:      &idQueue{},
		inbox:    filepath.Join(testsupport.BaseDir(cfg), "inbox"),
		outDir:   filepath.Join(testsupport.BaseDir(cfg), "out"),
	}
	base := []workflow.Option{
		workflow.WithSubmitter(h.crossref),
		workflow.WithVerifier(h.crossref),
		workflow.WithClock(func() time.Time { return fixedNow }),
		workflow.WithIDSource(h.ids.next),
	}
	runner, err := workflow.NewRunner(cfg, h.store, logging.NewNop(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	h.runner = runner
	return h
}

// addArchive writes a fixture archive into the inbox.
func (h *harness) addArchive(t *testing.T, name string, spec testsupport.MECASpec, receivedAt time.Time) {
	t.Helper()
	testsupport.WriteMECA(t, h.inbox, name, spec, receivedAt)
}

// parse stages the inbox and parses everything in it.
func (h *harness) parse(t *testing.T) *workflow.ParseReport {
	t.Helper()
	h.runs++
	runID := fmt.Sprintf("parse-%d", h.runs)
	_, files, err := workflow.StageInput(h.inbox, h.outDir, runID)
	if err != nil {
		t.Fatalf("StageInput: %v", err)
	}
	report, err := h.runner.Parse(context.Background(), runID, files)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return report
}

func (h *harness) deposit(t *testing.T, opts workflow.Options) *workflow.Summary {
	t.Helper()
	h.runs++
	if opts.RunID == "" {
		opts.RunID = fmt.Sprintf("deposit-%d", h.runs)
	}
	summary, err := h.runner.Deposit(context.Background(), opts)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	return summary
}

func (h *harness) state(t *testing.T, id string) store.State {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return rec.State
}

func preprintSpec(preprint string) testsupport.MECASpec {
	spec := testsupport.DefaultMECA()
	spec.PreprintDOI = preprint
	return spec
}

// fiveEventSpec has two rounds: two reports and a reply, then one report and
// a reply.
func fiveEventSpec() testsupport.MECASpec {
	spec := testsupport.DefaultMECA()
	spec.Revisions = append(spec.Revisions, testsupport.MECARevision{
		Revision: "1",
		Reviews: []testsupport.MECAReview{
			{Assigned: time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC), Items: [][2]string{{"Significance", "<p>Revised.</p>"}}},
		},
		AuthorReply: true,
	})
	return spec
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}
