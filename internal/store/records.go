package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// UpsertRecord stores a freshly parsed archive. A new archive is inserted as
// given. An archive that is still in a parse-time state is refreshed; one that
// has entered deposition only has its path updated, so re-parsing never
// rewinds its lifecycle.
func (s *Store) UpsertRecord(ctx context.Context, rec Record) (*Record, error) {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return nil, errors.New("upsert record: archive id required")
	}
	if !rec.State.IsParseState() {
		return nil, fmt.Errorf("upsert record %s: %w: %s is not a parse state", rec.ID, ErrStateConflict, rec.State)
	}
	now := formatTime(s.timestamp())

	var stored *Record
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := getRecord(ctx, tx, rec.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO archives (id, path, preprint_doi, title, received_at, state, manuscript_json, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.Path, nullableString(rec.PreprintDOI), nullableString(rec.Title),
				formatTime(rec.ReceivedAt), string(rec.State), nullableString(rec.ManuscriptJSON), now, now,
			); err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
		case err != nil:
			return err
		case existing.State.IsParseState():
			if _, err := tx.ExecContext(ctx,
				`UPDATE archives SET path = ?, preprint_doi = ?, title = ?, received_at = ?, state = ?,
                 manuscript_json = ?, updated_at = ? WHERE id = ?`,
				rec.Path, nullableString(rec.PreprintDOI), nullableString(rec.Title), formatTime(rec.ReceivedAt),
				string(rec.State), nullableString(rec.ManuscriptJSON), now, rec.ID,
			); err != nil {
				return fmt.Errorf("refresh record: %w", err)
			}
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE archives SET path = ?, updated_at = ? WHERE id = ?`, rec.Path, now, rec.ID,
			); err != nil {
				return fmt.Errorf("update record path: %w", err)
			}
		}
		stored, err = getRecord(ctx, tx, rec.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Get returns the record for an archive or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return getRecord(ensureContext(ctx), s.db, id)
}

func getRecord(ctx context.Context, q sqlx.QueryerContext, id string) (*Record, error) {
	query, args, err := selectRecords().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row recordRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return row.record(), nil
}

func (s *Store) selectRecords(ctx context.Context, q sq.SelectBuilder) ([]*Record, error) {
	query, args, err := q.OrderBy("received_at", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []recordRow
	if err := s.db.SelectContext(ensureContext(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// List returns records in the given states, or all records when none are
// given, ordered by receipt date.
func (s *Store) List(ctx context.Context, states ...State) ([]*Record, error) {
	q := selectRecords()
	if len(states) > 0 {
		q = q.Where(sq.Eq{"state": stateStrings(states)})
	}
	return s.selectRecords(ctx, q)
}

// FindEligible returns archives ready for a first deposition whose receipt
// date lies in r.
func (s *Store) FindEligible(ctx context.Context, r Range) ([]*Record, error) {
	q := selectRecords().Where(sq.Eq{"state": string(StateReadyForDeposit)})
	return s.selectRecords(ctx, rangeFilter(q, r))
}

// FindFailed returns archives whose last deposition can be retried without
// regeneration: unverified submissions and rejected depositions.
func (s *Store) FindFailed(ctx context.Context, r Range) ([]*Record, error) {
	q := selectRecords().Where(sq.Eq{"state": stateStrings([]State{
		StateSubmitted,
		StateDepositionVerificationFailed,
		StateDepositionFailed,
	})})
	return s.selectRecords(ctx, rangeFilter(q, r))
}

// FindByPreprintDOI returns every archive carrying the preprint DOI, compared
// case-insensitively.
func (s *Store) FindByPreprintDOI(ctx context.Context, preprintDOI string) ([]*Record, error) {
	preprintDOI = strings.TrimSpace(preprintDOI)
	if preprintDOI == "" {
		return nil, nil
	}
	q := selectRecords().Where(sq.Expr("lower(preprint_doi) = lower(?)", preprintDOI))
	return s.selectRecords(ctx, q)
}

// StateCounts returns the number of archives per state.
func (s *Store) StateCounts(ctx context.Context) (map[State]int, error) {
	var rows []struct {
		State string `db:"state"`
		Count int    `db:"n"`
	}
	if err := s.db.SelectContext(ensureContext(ctx), &rows,
		`SELECT state, COUNT(1) AS n FROM archives GROUP BY state`); err != nil {
		return nil, fmt.Errorf("count states: %w", err)
	}
	counts := make(map[State]int, len(rows))
	for _, row := range rows {
		counts[State(row.State)] = row.Count
	}
	return counts, nil
}

// Attempts returns the attempt history of an archive, oldest first.
func (s *Store) Attempts(ctx context.Context, archiveID string) ([]Attempt, error) {
	query, args, err := sq.Select(attemptColumns...).From("attempts").
		Where(sq.Eq{"archive_id": archiveID}).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []attemptRow
	if err := s.db.SelectContext(ensureContext(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	out := make([]Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.attempt())
	}
	return out, nil
}
