package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// TransitionRequest moves one archive between lifecycle states. The optional
// fields are written alongside the state change.
type TransitionRequest struct {
	ArchiveID string
	From      State
	To        State
	// Owner is the lease holder performing the change. Empty means the
	// archive must not be leased by anyone else.
	Owner   string
	Attempt Attempt

	DepositionXML      *string
	SubmittedAt        *time.Time
	CrossrefStatus     *string
	VerificationStatus *string
	// ClearParams drops the stored generation params so the next run mints
	// new DOIs.
	ClearParams bool
}

// Transition applies a compare-and-swap state change and appends its attempt
// row in the same transaction. It returns ErrStateConflict when the record is
// not in req.From or the change is not part of the lifecycle, and
// ErrLeaseHeld when another owner holds the lease.
func (s *Store) Transition(ctx context.Context, req TransitionRequest) error {
	if req.From == StateDepositionSucceeded {
		return fmt.Errorf("%w: %s is terminal", ErrStateConflict, StateDepositionSucceeded)
	}
	if !CanTransition(req.From, req.To) {
		return fmt.Errorf("%w: %s -> %s is not allowed", ErrStateConflict, req.From, req.To)
	}
	now := s.timestamp()

	update := sq.Update("archives").
		Set("state", string(req.To)).
		Set("updated_at", formatTime(now)).
		Where(sq.Eq{"id": req.ArchiveID, "state": string(req.From)}).
		Where(leaseCondition(req.Owner, now))
	if req.DepositionXML != nil {
		update = update.Set("deposition_xml", nullableString(*req.DepositionXML))
	}
	if req.SubmittedAt != nil {
		update = update.Set("submitted_at", nullableTime(req.SubmittedAt))
	}
	if req.CrossrefStatus != nil {
		update = update.Set("crossref_status", nullableString(*req.CrossrefStatus))
	}
	if req.VerificationStatus != nil {
		update = update.Set("verification_status", nullableString(*req.VerificationStatus))
	}
	if req.ClearParams {
		update = update.Set("params_timestamp", nil).Set("params_nonce", nil)
	}
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build transition: %w", err)
	}

	attempt := req.Attempt
	attempt.ArchiveID = req.ArchiveID
	attempt.FromState = req.From
	attempt.ToState = req.To

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("transition %s: %w", req.ArchiveID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("transition %s: %w", req.ArchiveID, err)
		} else if n == 0 {
			return explainMiss(ctx, tx, req.ArchiveID, req.From, req.Owner)
		}
		_, err = insertAttempt(ctx, tx, attempt, now)
		return err
	})
}

// leaseCondition matches rows the owner may write: its own lease, or for an
// empty owner any row without an unexpired lease.
func leaseCondition(owner string, now time.Time) sq.Sqlizer {
	if owner != "" {
		return sq.Eq{"lease_owner": owner}
	}
	return sq.Or{
		sq.Eq{"lease_owner": nil},
		sq.Lt{"lease_expires_at": formatTime(now)},
	}
}

func explainMiss(ctx context.Context, q sqlx.QueryerContext, id string, expected State, owner string) error {
	rec, err := getRecord(ctx, q, id)
	if err != nil {
		return err
	}
	if expected != "" && rec.State != expected {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrStateConflict, id, rec.State, expected)
	}
	holder := rec.LeaseOwner
	if holder == "" {
		holder = "nobody"
	}
	if owner == "" {
		owner = "no lease"
	}
	return fmt.Errorf("%w: %s leased by %s (caller holds %s)", ErrLeaseHeld, id, holder, owner)
}

// AppendAttempt records an attempt that does not change state, such as a
// transport failure. FromState and ToState default to the record's current
// state.
func (s *Store) AppendAttempt(ctx context.Context, attempt Attempt) (int64, error) {
	if strings.TrimSpace(attempt.ArchiveID) == "" {
		return 0, errors.New("append attempt: archive id required")
	}
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		rec, err := getRecord(ctx, tx, attempt.ArchiveID)
		if err != nil {
			return err
		}
		if attempt.FromState == "" {
			attempt.FromState = rec.State
		}
		if attempt.ToState == "" {
			attempt.ToState = rec.State
		}
		id, err = insertAttempt(ctx, tx, attempt, s.timestamp())
		return err
	})
	return id, err
}

func insertAttempt(ctx context.Context, tx *sqlx.Tx, a Attempt, now time.Time) (int64, error) {
	if a.Outcome == "" {
		return 0, errors.New("append attempt: outcome required")
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (archive_id, run_id, from_state, to_state, outcome, deposition_xml, response,
         error_message, expected_dois, matched_dois, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ArchiveID, a.RunID, string(a.FromState), string(a.ToState), string(a.Outcome),
		nullableString(a.DepositionXML), nullableString(a.Response), nullableString(a.ErrorMessage),
		a.ExpectedDOIs, a.MatchedDOIs, formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	return res.LastInsertId()
}

// AcquireLease takes the archive lease for owner until ttl elapses. Expired
// leases are taken over; re-acquiring one's own lease extends it.
func (s *Store) AcquireLease(ctx context.Context, id, owner string, ttl time.Duration) error {
	if strings.TrimSpace(owner) == "" {
		return errors.New("acquire lease: owner required")
	}
	now := s.timestamp()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE archives SET lease_owner = ?, lease_expires_at = ?
             WHERE id = ? AND (lease_owner IS NULL OR lease_owner = ? OR lease_expires_at < ?)`,
			owner, formatTime(now.Add(ttl)), id, owner, formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("acquire lease %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("acquire lease %s: %w", id, err)
		} else if n == 0 {
			return explainMiss(ctx, tx, id, "", owner)
		}
		return nil
	})
}

// ReleaseLease drops owner's lease. Releasing a lease one does not hold is a
// no-op.
func (s *Store) ReleaseLease(ctx context.Context, id, owner string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE archives SET lease_owner = NULL, lease_expires_at = NULL WHERE id = ? AND lease_owner = ?`,
			id, owner,
		)
		if err != nil {
			return fmt.Errorf("release lease %s: %w", id, err)
		}
		return nil
	})
}

// SaveGenerationParams persists the params of the document about to be
// submitted so a retry reproduces it.
func (s *Store) SaveGenerationParams(ctx context.Context, id, owner string, params GenerationParams) error {
	return s.ClaimGeneration(ctx, id, owner, &params, nil)
}

// ClaimGeneration registers the DOIs of a generated document and, when params
// is not nil, stores the params that produced it. Both happen in one
// transaction, so a DOI conflict leaves neither behind.
func (s *Store) ClaimGeneration(ctx context.Context, id, owner string, params *GenerationParams, claims []DOIClaim) error {
	if params != nil && (params.Timestamp.IsZero() || strings.TrimSpace(params.Nonce) == "") {
		return errors.New("save generation params: timestamp and nonce required")
	}
	now := s.timestamp()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := claimDOIs(ctx, tx, id, claims, now); err != nil {
			return err
		}
		if params == nil {
			return nil
		}
		return saveParams(ctx, tx, id, owner, *params, now)
	})
}

func saveParams(ctx context.Context, tx *sqlx.Tx, id, owner string, params GenerationParams, now time.Time) error {
	query, args, err := sq.Update("archives").
		Set("params_timestamp", formatTime(params.Timestamp)).
		Set("params_nonce", params.Nonce).
		Set("updated_at", formatTime(now)).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"state": string(StateDepositionSucceeded)}).
		Where(leaseCondition(owner, now)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save generation params %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("save generation params %s: %w", id, err)
	} else if n == 0 {
		rec, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.State == StateDepositionSucceeded {
			return fmt.Errorf("%w: %s is terminal", ErrStateConflict, id)
		}
		return explainMiss(ctx, tx, id, "", owner)
	}
	return nil
}

// Reset returns an archive that needs operator attention to
// READY_FOR_DEPOSIT so the next run regenerates it. A generation failure
// also drops the stored params, since replaying them would fail the same way.
func (s *Store) Reset(ctx context.Context, id, runID string) (State, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	switch rec.State {
	case StateDepositionGenerationFailed, StateDOIsAlreadyPresent:
	default:
		return rec.State, fmt.Errorf("%w: %s is %s; only %s and %s can be reset",
			ErrStateConflict, id, rec.State, StateDepositionGenerationFailed, StateDOIsAlreadyPresent)
	}
	err = s.Transition(ctx, TransitionRequest{
		ArchiveID:   id,
		From:        rec.State,
		To:          StateReadyForDeposit,
		ClearParams: rec.State == StateDepositionGenerationFailed,
		Attempt:     Attempt{RunID: runID, Outcome: OutcomeReset},
	})
	return rec.State, err
}

// Acknowledge marks a record's outcome as accepted by an operator, which
// makes its archive file eligible for pruning. Archives that are ready,
// in flight or already succeeded cannot be acknowledged.
func (s *Store) Acknowledge(ctx context.Context, id string) (*Record, error) {
	var out *Record
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		rec, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		switch rec.State {
		case StateReadyForDeposit, StateSubmitted, StateDepositionSucceeded:
			return fmt.Errorf("%w: %s is %s and cannot be acknowledged", ErrStateConflict, id, rec.State)
		}
		if rec.AcknowledgedAt == nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE archives SET acknowledged_at = ?, updated_at = ? WHERE id = ?`,
				formatTime(s.timestamp()), formatTime(s.timestamp()), id,
			); err != nil {
				return fmt.Errorf("acknowledge %s: %w", id, err)
			}
		}
		out, err = getRecord(ctx, tx, id)
		return err
	})
	return out, err
}
