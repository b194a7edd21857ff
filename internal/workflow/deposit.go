package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mecadoi/internal/article"
	"mecadoi/internal/deposition"
	"mecadoi/internal/logging"
	"mecadoi/internal/meca"
	"mecadoi/internal/services"
	"mecadoi/internal/services/eeb"
	"mecadoi/internal/store"
)

// Options select and shape a deposit run.
type Options struct {
	Range store.Range
	// DryRun generates and reports without submitting or writing the store.
	DryRun bool
	// RetryFailed selects SUBMITTED, DEPOSITION_FAILED and
	// DEPOSITION_VERIFICATION_FAILED archives instead of ready ones.
	RetryFailed bool
	RunID       string
}

// job carries one archive through a deposit run.
type job struct {
	runID  string
	owner  string
	dryRun bool
	rec    *store.Record
	res    *Result
}

// Deposit moves every selected archive as far along the lifecycle as it can
// go in one pass. Per-archive failures are recorded and the run continues;
// store failures abort it. Cancelling ctx stops before the next archive.
func (r *Runner) Deposit(ctx context.Context, opts Options) (*Summary, error) {
	runID := opts.RunID
	if runID == "" {
		runID = r.newID()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	summary := &Summary{RunID: runID, DryRun: opts.DryRun, StartedAt: r.now().UTC()}

	var (
		records []*store.Record
		err     error
	)
	if opts.RetryFailed {
		records, err = r.store.FindFailed(ctx, opts.Range)
	} else {
		records, err = r.store.FindEligible(ctx, opts.Range)
	}
	if err != nil {
		return summary, err
	}
	logger.Info("deposit run started",
		logging.Int("archives", len(records)),
		logging.Bool("dry_run", opts.DryRun),
		logging.Bool("retry_failed", opts.RetryFailed),
		logging.String(logging.FieldEventType, "deposit_started"),
	)

	for _, rec := range records {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logging.WarnWithContext(logger, "deposit run interrupted", "deposit_interrupted",
				logging.Int("processed", len(summary.Results)),
				logging.String(logging.FieldErrorHint, "remaining archives keep their state; run deposit again"),
			)
			break
		}
		archiveCtx := services.WithArchiveID(ctx, rec.ID)
		res, err := r.depositOne(archiveCtx, runID, rec, opts.DryRun)
		summary.Results = append(summary.Results, res)
		if err != nil {
			summary.FinishedAt = r.now().UTC()
			logging.ErrorWithContext(logger, "deposit run aborted", "deposit_aborted",
				logging.String(logging.FieldArchiveID, rec.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state database; completed archives keep their state"),
			)
			return summary, err
		}
	}
	summary.FinishedAt = r.now().UTC()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "deposit_complete"),
		logging.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	for category, n := range summary.Counts() {
		attrs = append(attrs, logging.Int(category, n))
	}
	logger.Info("deposit run complete", logging.Args(attrs...)...)
	return summary, nil
}

func (r *Runner) depositOne(ctx context.Context, runID string, rec *store.Record, dryRun bool) (Result, error) {
	res := Result{
		ArchiveID:   rec.ID,
		Path:        rec.Path,
		PreprintDOI: rec.PreprintDOI,
		Title:       rec.Title,
		PriorState:  rec.State,
		State:       rec.State,
	}
	j := &job{runID: runID, dryRun: dryRun, rec: rec, res: &res}

	if !dryRun {
		j.owner = runID
		if err := r.store.AcquireLease(ctx, rec.ID, j.owner, r.leaseTTL()); err != nil {
			if errors.Is(err, store.ErrLeaseHeld) {
				res.Skipped = true
				res.Message = err.Error()
				return res, nil
			}
			return res, err
		}
		defer func() {
			if err := r.store.ReleaseLease(context.WithoutCancel(ctx), rec.ID, j.owner); err != nil {
				logging.WarnWithContext(logging.WithContext(ctx, r.logger), "lease release failed", "lease_release_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the lease expires on its own"),
				)
			}
		}()
		current, err := r.store.Get(ctx, rec.ID)
		if err != nil {
			return res, err
		}
		j.rec = current
		res.PriorState = current.State
		res.State = current.State
	}

	var err error
	switch j.rec.State {
	case store.StateReadyForDeposit, store.StateDepositionFailed:
		err = r.submitArchive(services.WithStage(ctx, "submit"), j)
	case store.StateSubmitted, store.StateDepositionVerificationFailed:
		err = r.verifyArchive(services.WithStage(ctx, "verify"), j)
	default:
		res.Skipped = true
		res.Message = fmt.Sprintf("archive is %s", j.rec.State)
	}
	if errors.Is(err, store.ErrStateConflict) || errors.Is(err, store.ErrLeaseHeld) {
		res.Skipped = true
		res.Message = err.Error()
		return res, nil
	}
	return res, err
}

func (r *Runner) submitArchive(ctx context.Context, j *job) error {
	a, err := loadArticle(j.rec)
	if err != nil {
		return r.generationFailed(ctx, j, err)
	}
	params, fresh := r.paramsFor(j.rec)
	doc, err := r.generator.Generate(a, params)
	if err != nil {
		return r.generationFailed(ctx, j, err)
	}
	j.res.DOIs = doc.DOIStrings()

	if !fresh {
		if done, err := r.checkReplayedDOIs(ctx, j, doc); done || err != nil {
			return err
		}
	}
	if r.presence != nil && a.PreprintDOI != "" {
		if done, err := r.checkEEB(ctx, j, a, doc); done || err != nil {
			return err
		}
	}

	if j.dryRun {
		j.res.State = store.StateSubmitted
		j.res.Outcome = store.OutcomeGenerated
		j.res.Message = fmt.Sprintf("would submit batch %s", doc.BatchID)
		return nil
	}

	doc, err = r.claimDOIs(ctx, j, a, doc, params, fresh)
	if err != nil {
		if errors.Is(err, store.ErrDOIConflict) || errors.Is(err, deposition.ErrGenerationFailed) {
			return r.generationFailed(ctx, j, err)
		}
		return err
	}
	j.res.DOIs = doc.DOIStrings()

	submission, err := r.submitter.Submit(ctx, doc.BatchID+".xml", doc.XML)
	storeCtx := context.WithoutCancel(ctx)
	document := string(doc.XML)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return err
		}
		return r.recordTransient(storeCtx, j, store.OutcomeTransportError, document, err)
	}

	status := submission.Summary()
	if !submission.Accepted {
		return r.transition(storeCtx, j, store.TransitionRequest{
			To:             store.StateDepositionFailed,
			DepositionXML:  &document,
			CrossrefStatus: &status,
			Attempt: store.Attempt{
				Outcome:       store.OutcomeRejected,
				DepositionXML: document,
				Response:      submission.RawResponse,
				ErrorMessage:  status,
			},
		})
	}

	submittedAt := r.now().UTC()
	if err := r.transition(storeCtx, j, store.TransitionRequest{
		To:             store.StateSubmitted,
		DepositionXML:  &document,
		SubmittedAt:    &submittedAt,
		CrossrefStatus: &status,
		Attempt: store.Attempt{
			Outcome:       store.OutcomeAccepted,
			DepositionXML: document,
			Response:      submission.RawResponse,
		},
	}); err != nil {
		return err
	}
	j.rec.DepositionXML = document
	j.res.Deposited = newDepositedArticle(j.rec.ID, j.rec.Path, a, doc)

	if r.cfg.Workflow.VerifyAfterSubmit && ctx.Err() == nil {
		return r.verifyArchive(services.WithStage(ctx, "verify"), j)
	}
	return nil
}

// claimDOIs registers the document's DOIs, storing fresh params in the same
// transaction. A conflict with another archive is retried with a new nonce
// while the params are not yet persisted.
func (r *Runner) claimDOIs(ctx context.Context, j *job, a *article.Article, doc *deposition.Document, params deposition.Params, fresh bool) (*deposition.Document, error) {
	for attempt := 1; ; attempt++ {
		var saved *store.GenerationParams
		if fresh {
			saved = &store.GenerationParams{Timestamp: params.Timestamp, Nonce: params.Nonce}
		}
		err := r.store.ClaimGeneration(ctx, j.rec.ID, j.owner, saved, claimsFor(doc))
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, store.ErrDOIConflict) || !fresh || attempt >= r.doiAttempts() {
			return doc, err
		}
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "DOI already claimed, regenerating", "doi_conflict",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.String(logging.FieldErrorHint, "the DOI template produces colliding values"),
		)
		params.Nonce = r.newID()
		doc, err = r.generator.Generate(a, params)
		if err != nil {
			return doc, err
		}
	}
}

// checkReplayedDOIs resolves the DOIs of a document rebuilt from stored
// params. An earlier submission whose answer was lost may have registered
// them already. The first result reports whether the archive was handled.
func (r *Runner) checkReplayedDOIs(ctx context.Context, j *job, doc *deposition.Document) (bool, error) {
	result, err := r.verifier.Verify(ctx, doc.DOIStrings())
	if err != nil {
		if services.IsRetryable(err) {
			return true, r.recordTransient(context.WithoutCancel(ctx), j, store.OutcomeVerificationError, "", err)
		}
		return true, err
	}
	if len(result.Matched) == 0 {
		return false, nil
	}
	msg := fmt.Sprintf("DOIs of an earlier submission already resolve: %s", strings.Join(result.Matched, ", "))
	return true, r.transition(context.WithoutCancel(ctx), j, store.TransitionRequest{
		To: store.StateDOIsAlreadyPresent,
		Attempt: store.Attempt{
			Outcome:      store.OutcomeDOIsAlreadyPresent,
			ErrorMessage: msg,
			ExpectedDOIs: len(result.Expected),
			MatchedDOIs:  len(result.Matched),
		},
	})
}

// checkEEB lets the archive through only when EEB shows one article with
// exactly the reviews the document registers and none of them has a DOI.
// Assigned DOIs need an operator; any other mismatch keeps the state so a
// later run checks again.
func (r *Runner) checkEEB(ctx context.Context, j *job, a *article.Article, doc *deposition.Document) (bool, error) {
	check, err := r.presence.Check(ctx, a.PreprintDOI, expectationFor(doc))
	if err != nil {
		if services.IsRetryable(err) {
			return true, r.recordTransient(context.WithoutCancel(ctx), j, store.OutcomeTransportError, "", err)
		}
		return true, err
	}
	problem := check.Problem()
	switch {
	case problem == "":
		return false, nil
	case check.Articles == 1 && len(check.AssignedDOIs) > 0:
		return true, r.transition(ctx, j, store.TransitionRequest{
			To:      store.StateDOIsAlreadyPresent,
			Attempt: store.Attempt{Outcome: store.OutcomeDOIsAlreadyPresent, ErrorMessage: problem},
		})
	default:
		return true, r.recordHeld(context.WithoutCancel(ctx), j, check)
	}
}

func expectationFor(doc *deposition.Document) eeb.Expectation {
	var want eeb.Expectation
	for _, d := range doc.DOIs {
		switch d.Kind {
		case article.KindRefereeReport:
			want.Reviews++
		case article.KindAuthorReply:
			want.AuthorReply = true
		}
	}
	return want
}

func claimsFor(doc *deposition.Document) []store.DOIClaim {
	claims := make([]store.DOIClaim, len(doc.DOIs))
	for i, d := range doc.DOIs {
		claims[i] = store.DOIClaim{DOI: d.DOI, Resource: d.Resource, Kind: string(d.Kind)}
	}
	return claims
}

func (r *Runner) verifyArchive(ctx context.Context, j *job) error {
	dois, err := deposition.ExtractDOIs([]byte(j.rec.DepositionXML))
	if err == nil && len(dois) == 0 {
		err = errors.New("deposition registers no DOIs")
	}
	if err != nil {
		msg := fmt.Sprintf("stored deposition unusable: %v", err)
		return r.transition(ctx, j, store.TransitionRequest{
			To:                 store.StateDepositionVerificationFailed,
			VerificationStatus: &msg,
			Attempt:            store.Attempt{Outcome: store.OutcomeVerificationError, ErrorMessage: msg},
		})
	}
	j.res.DOIs = dois

	result, err := r.verifier.Verify(ctx, dois)
	storeCtx := context.WithoutCancel(ctx)
	if err != nil {
		if services.IsRetryable(err) {
			return r.recordTransient(storeCtx, j, store.OutcomeVerificationError, "", err)
		}
		return err
	}

	status := result.Summary()
	attempt := store.Attempt{
		Outcome:      store.OutcomeVerified,
		ExpectedDOIs: len(result.Expected),
		MatchedDOIs:  len(result.Matched),
	}
	to := store.StateDepositionSucceeded
	if !result.OK() {
		to = store.StateDepositionVerificationFailed
		attempt.Outcome = store.OutcomeVerificationMismatch
		attempt.ErrorMessage = status
	}
	return r.transition(storeCtx, j, store.TransitionRequest{
		To:                 to,
		VerificationStatus: &status,
		Attempt:            attempt,
	})
}

func (r *Runner) generationFailed(ctx context.Context, j *job, cause error) error {
	return r.transition(ctx, j, store.TransitionRequest{
		To:      store.StateDepositionGenerationFailed,
		Attempt: store.Attempt{Outcome: store.OutcomeGenerationFailed, ErrorMessage: cause.Error()},
	})
}

// transition applies req from the job's current state. Dry runs only report
// where the archive would go.
func (r *Runner) transition(ctx context.Context, j *job, req store.TransitionRequest) error {
	req.ArchiveID = j.rec.ID
	req.From = j.rec.State
	req.Owner = j.owner
	req.Attempt.RunID = j.runID
	if !j.dryRun {
		if err := r.store.Transition(ctx, req); err != nil {
			return err
		}
		j.rec.State = req.To
	}
	j.res.State = req.To
	j.res.Outcome = req.Attempt.Outcome
	if req.Attempt.ErrorMessage != "" {
		j.res.Message = req.Attempt.ErrorMessage
	} else if req.VerificationStatus != nil {
		j.res.Message = *req.VerificationStatus
	}

	logger := logging.WithContext(ctx, r.logger)
	attrs := []logging.Attr{
		logging.String("from", string(req.From)),
		logging.String(logging.FieldState, string(req.To)),
		logging.String("outcome", string(req.Attempt.Outcome)),
		logging.Bool("dry_run", j.dryRun),
	}
	if req.To.IsFailure() {
		logging.WarnWithContext(logger, "archive failed", "archive_failed", append(attrs,
			logging.String("reason", req.Attempt.ErrorMessage),
			logging.String(logging.FieldErrorHint, failureHint(req.To)),
		)...)
		return nil
	}
	logger.Info("archive transitioned", logging.Args(append(attrs, logging.String(logging.FieldEventType, "archive_transitioned"))...)...)
	return nil
}

// recordTransient appends an attempt without changing state.
func (r *Runner) recordTransient(ctx context.Context, j *job, outcome store.Outcome, document string, cause error) error {
	if err := r.appendAttempt(ctx, j, outcome, document, cause.Error()); err != nil {
		return err
	}
	j.res.Transient = true
	j.res.Outcome = outcome
	j.res.Message = cause.Error()
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "external service unavailable", string(outcome),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "archive keeps its state; run deposit again later"),
	)
	return nil
}

// recordHeld appends an eeb_mismatch attempt and keeps the state.
func (r *Runner) recordHeld(ctx context.Context, j *job, check eeb.Check) error {
	problem := check.Problem()
	if err := r.appendAttempt(ctx, j, store.OutcomeEEBMismatch, "", problem); err != nil {
		return err
	}
	j.res.Held = true
	j.res.Outcome = store.OutcomeEEBMismatch
	j.res.Message = problem
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "EEB does not show the deposited reviews", string(store.OutcomeEEBMismatch),
		logging.String("reason", problem),
		logging.Int("eeb_articles", check.Articles),
		logging.Any("expected", check.Expected),
		logging.String(logging.FieldErrorHint, "archive keeps its state; run deposit again once EEB lists the reviews"),
	)
	return nil
}

func (r *Runner) appendAttempt(ctx context.Context, j *job, outcome store.Outcome, document, message string) error {
	if j.dryRun {
		return nil
	}
	_, err := r.store.AppendAttempt(ctx, store.Attempt{
		ArchiveID:     j.rec.ID,
		RunID:         j.runID,
		Outcome:       outcome,
		DepositionXML: document,
		ErrorMessage:  message,
	})
	return err
}

func failureHint(state store.State) string {
	switch state {
	case store.StateDepositionGenerationFailed:
		return "fix the archive or templates, then run batch reset"
	case store.StateDOIsAlreadyPresent:
		return "check the existing DOIs, then run batch reset or batch acknowledge"
	case store.StateDepositionFailed:
		return "inspect the Crossref response and rerun with --retry-failed"
	case store.StateDepositionVerificationFailed:
		return "DOIs may still be registering; rerun with --retry-failed"
	default:
		return "check logs for details"
	}
}

func loadArticle(rec *store.Record) (*article.Article, error) {
	var manuscript *meca.Manuscript
	if rec.ManuscriptJSON != "" {
		manuscript = new(meca.Manuscript)
		if err := json.Unmarshal([]byte(rec.ManuscriptJSON), manuscript); err != nil {
			return nil, fmt.Errorf("decode stored manuscript: %w", err)
		}
	} else {
		parsed, err := meca.Parse(rec.Path)
		if err != nil {
			return nil, err
		}
		manuscript = parsed
	}
	return article.Build(manuscript, article.Options{ArchiveName: rec.ID, ReceivedAt: rec.ReceivedAt})
}

// paramsFor replays persisted params so a retry regenerates the same
// document. The second result reports whether the params are new.
func (r *Runner) paramsFor(rec *store.Record) (deposition.Params, bool) {
	if rec.Params != nil {
		return deposition.Params{Timestamp: rec.Params.Timestamp, Nonce: rec.Params.Nonce}, false
	}
	return deposition.Params{Timestamp: r.now().UTC(), Nonce: r.newID()}, true
}
