package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mecadoi/internal/config"
	"mecadoi/internal/deposition"
	"mecadoi/internal/logging"
	"mecadoi/internal/services/crossref"
	"mecadoi/internal/services/eeb"
	"mecadoi/internal/store"
)

// Submitter uploads deposition documents.
type Submitter interface {
	Submit(ctx context.Context, filename string, document []byte) (crossref.SubmissionResult, error)
}

// Verifier checks that registered DOIs resolve.
type Verifier interface {
	Verify(ctx context.Context, dois []string) (crossref.VerificationResult, error)
}

// PresenceChecker compares the reviews EEB shows for a preprint with the
// ones a deposition registers.
type PresenceChecker interface {
	Check(ctx context.Context, preprintDOI string, want eeb.Expectation) (eeb.Check, error)
}

// Runner executes batch operations against one store.
type Runner struct {
	cfg       *config.Config
	store     *store.Store
	logger    *slog.Logger
	generator *deposition.Generator
	submitter Submitter
	verifier  Verifier
	presence  PresenceChecker
	now       func() time.Time
	newID     func() string
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithSubmitter replaces the Crossref deposit client.
func WithSubmitter(s Submitter) Option {
	return func(r *Runner) { r.submitter = s }
}

// WithVerifier replaces the DOI resolver client.
func WithVerifier(v Verifier) Option {
	return func(r *Runner) { r.verifier = v }
}

// WithPresenceChecker replaces the EEB lookup. A nil checker disables it.
func WithPresenceChecker(p PresenceChecker) Option {
	return func(r *Runner) { r.presence = p }
}

// WithClock replaces the time source for generation params and receipts.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDSource replaces the generator of run ids and nonces.
func WithIDSource(newID func() string) Option {
	return func(r *Runner) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// NewRunner wires the generator and external clients from configuration.
// Options override the configured clients.
func NewRunner(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil || st == nil {
		return nil, fmt.Errorf("workflow runner requires config and store")
	}
	templates, err := deposition.ParseTemplates(cfg.TemplateSet())
	if err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "workflow"),
		generator: deposition.NewGenerator(templates, deposition.Depositor{
			Name:          cfg.Depositor.Name,
			Email:         cfg.Depositor.Email,
			Registrant:    cfg.Depositor.Registrant,
			Institution:   cfg.Depositor.Institution,
			BatchIDPrefix: cfg.Depositor.BatchIDPrefix,
		}),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}

	client, err := crossref.New(cfg.Crossref.DepositURL, cfg.Crossref.ResolverURL,
		crossref.Credentials{Username: cfg.Crossref.Username, Password: cfg.Crossref.Password},
		crossref.WithTimeout(time.Duration(cfg.Crossref.TimeoutSeconds)*time.Second),
	)
	if err != nil {
		return nil, err
	}
	r.submitter = client
	r.verifier = client
	if cfg.EEB.Enabled {
		lookup, err := eeb.New(cfg.EEB.BaseURL, eeb.WithTimeout(time.Duration(cfg.EEB.TimeoutSeconds)*time.Second))
		if err != nil {
			return nil, err
		}
		r.presence = lookup
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewRunID returns a fresh run identifier.
func (r *Runner) NewRunID() string {
	return r.newID()
}

func (r *Runner) leaseTTL() time.Duration {
	return time.Duration(r.cfg.Workflow.LeaseSeconds) * time.Second
}

func (r *Runner) doiAttempts() int {
	if r.cfg.Workflow.DOIAttempts < 1 {
		return 1
	}
	return r.cfg.Workflow.DOIAttempts
}
