package workflow

import (
	"sort"
	"strings"
	"time"

	"mecadoi/internal/store"
)

// Category names used in summaries besides the lower-cased lifecycle states.
const (
	CategorySkipped        = "skipped"
	CategoryTransportError = "transport_error"
	CategoryEEBMismatch    = "eeb_mismatch"
)

// Result is the outcome of one archive in a deposit run.
type Result struct {
	ArchiveID   string
	Path        string
	PreprintDOI string
	Title       string
	PriorState  store.State
	// State is the state after the run, or the state the archive would have
	// reached in a dry run.
	State   store.State
	Outcome store.Outcome
	DOIs    []string
	Message string
	Skipped bool
	// Transient is set when an external service failed and the archive kept
	// its state for the next run.
	Transient bool
	// Held is set when EEB does not show the reviews the deposition
	// registers. The archive keeps its state and is checked again next run.
	Held bool
	// Deposited is set when Crossref accepted a submission in this run.
	Deposited *DepositedArticle
}

// Category groups the result for reporting.
func (r Result) Category() string {
	switch {
	case r.Skipped:
		return CategorySkipped
	case r.Transient:
		return CategoryTransportError
	case r.Held:
		return CategoryEEBMismatch
	default:
		return strings.ToLower(string(r.State))
	}
}

// Failed reports whether the result should make the run exit non-zero.
func (r Result) Failed() bool {
	return r.Transient || r.Held || r.State.IsFailure()
}

// Summary describes a deposit run.
type Summary struct {
	RunID       string
	DryRun      bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
	Results     []Result
}

// Grouped returns archive names keyed by category.
func (s *Summary) Grouped() map[string][]string {
	out := make(map[string][]string)
	for _, r := range s.Results {
		out[r.Category()] = append(out[r.Category()], displayName(r.Path, r.PreprintDOI))
	}
	return out
}

// Counts returns the number of archives per category.
func (s *Summary) Counts() map[string]int {
	out := make(map[string]int)
	for _, r := range s.Results {
		out[r.Category()]++
	}
	return out
}

// Categories returns the categories present, sorted.
func (s *Summary) Categories() []string {
	counts := s.Counts()
	out := make([]string, 0, len(counts))
	for c := range counts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// HasFailures reports whether any archive ended in a failure state or hit a
// transport error.
func (s *Summary) HasFailures() bool {
	for _, r := range s.Results {
		if r.Failed() {
			return true
		}
	}
	return false
}

// Deposited returns the articles Crossref accepted in this run.
func (s *Summary) Deposited() []DepositedArticle {
	var out []DepositedArticle
	for _, r := range s.Results {
		if r.Deposited != nil {
			out = append(out, *r.Deposited)
		}
	}
	return out
}
