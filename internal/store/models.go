package store

import (
	"time"
)

// State is the lifecycle state of an archive.
type State string

const (
	StateNoReview                     State = "NO_REVIEW"
	StateNoPreprintDOI                State = "NO_PREPRINT_DOI"
	StateDuplicate                    State = "DUPLICATE"
	StateReadyForDeposit              State = "READY_FOR_DEPOSIT"
	StateDepositionGenerationFailed   State = "DEPOSITION_GENERATION_FAILED"
	StateDOIsAlreadyPresent           State = "DOIS_ALREADY_PRESENT"
	StateSubmitted                    State = "SUBMITTED"
	StateDepositionVerificationFailed State = "DEPOSITION_VERIFICATION_FAILED"
	StateDepositionSucceeded          State = "DEPOSITION_SUCCEEDED"
	StateDepositionFailed             State = "DEPOSITION_FAILED"
)

// AllStates lists every lifecycle state in display order.
func AllStates() []State {
	return []State{
		StateNoReview,
		StateNoPreprintDOI,
		StateDuplicate,
		StateReadyForDeposit,
		StateDepositionGenerationFailed,
		StateDOIsAlreadyPresent,
		StateSubmitted,
		StateDepositionVerificationFailed,
		StateDepositionSucceeded,
		StateDepositionFailed,
	}
}

// ParseState validates a state name.
func ParseState(value string) (State, bool) {
	for _, s := range AllStates() {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// IsFailure reports whether the state should make a run exit non-zero.
func (s State) IsFailure() bool {
	switch s {
	case StateDepositionGenerationFailed, StateDOIsAlreadyPresent,
		StateDepositionVerificationFailed, StateDepositionFailed:
		return true
	default:
		return false
	}
}

// IsParseState reports whether the state is assigned at parse time, before
// any deposition work has touched the archive.
func (s State) IsParseState() bool {
	switch s {
	case StateNoReview, StateNoPreprintDOI, StateDuplicate, StateReadyForDeposit:
		return true
	default:
		return false
	}
}

var transitions = map[State][]State{
	StateReadyForDeposit: {
		StateDepositionGenerationFailed, StateDOIsAlreadyPresent,
		StateSubmitted, StateDepositionFailed,
	},
	StateDepositionFailed: {
		StateDepositionGenerationFailed, StateDOIsAlreadyPresent,
		StateSubmitted, StateDepositionFailed,
	},
	StateSubmitted:                    {StateDepositionSucceeded, StateDepositionVerificationFailed},
	StateDepositionVerificationFailed: {StateDepositionSucceeded, StateDepositionVerificationFailed},
	StateDepositionGenerationFailed:   {StateReadyForDeposit},
	StateDOIsAlreadyPresent:           {StateReadyForDeposit},
}

// CanTransition reports whether the lifecycle allows moving from one state to
// another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome classifies a single attempt row.
type Outcome string

const (
	OutcomeGenerated            Outcome = "generated"
	OutcomeGenerationFailed     Outcome = "generation_failed"
	OutcomeDOIsAlreadyPresent   Outcome = "dois_already_present"
	OutcomeEEBMismatch          Outcome = "eeb_mismatch"
	OutcomeTransportError       Outcome = "transport_error"
	OutcomeRejected             Outcome = "rejected"
	OutcomeAccepted             Outcome = "accepted"
	OutcomeVerified             Outcome = "verified"
	OutcomeVerificationMismatch Outcome = "verification_mismatch"
	OutcomeVerificationError    Outcome = "verification_error"
	OutcomeReset                Outcome = "reset"
)

// GenerationParams are the persisted non-deterministic inputs of the last
// generated deposition, replayed on retry.
type GenerationParams struct {
	Timestamp time.Time
	Nonce     string
}

// Record is the persisted lifecycle of one archive.
type Record struct {
	ID                 string
	Path               string
	PreprintDOI        string
	Title              string
	ReceivedAt         time.Time
	State              State
	ManuscriptJSON     string
	Params             *GenerationParams
	DepositionXML      string
	SubmittedAt        *time.Time
	CrossrefStatus     string
	VerificationStatus string
	LeaseOwner         string
	LeaseExpiresAt     *time.Time
	AcknowledgedAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Acknowledged reports whether an operator accepted the record's failure.
func (r *Record) Acknowledged() bool {
	return r != nil && r.AcknowledgedAt != nil
}

// Attempt is one append-only history row.
type Attempt struct {
	ID            int64
	ArchiveID     string
	RunID         string
	FromState     State
	ToState       State
	Outcome       Outcome
	DepositionXML string
	Response      string
	ErrorMessage  string
	ExpectedDOIs  int
	MatchedDOIs   int
	CreatedAt     time.Time
}

// DOIClaim registers a DOI for an archive.
type DOIClaim struct {
	DOI       string
	ArchiveID string
	Resource  string
	Kind      string
	ClaimedAt time.Time
}

// Range bounds the receipt date of selected archives. From is inclusive,
// Until exclusive; zero values leave that side open.
type Range struct {
	From  time.Time
	Until time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.Until.IsZero() && !t.Before(r.Until) {
		return false
	}
	return true
}
