package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// ClaimDOIs registers DOIs for an archive in one transaction. A DOI already
// held by a different archive fails the whole claim with ErrDOIConflict;
// DOIs the archive already holds are left as they are.
func (s *Store) ClaimDOIs(ctx context.Context, archiveID string, claims []DOIClaim) error {
	if len(claims) == 0 {
		return nil
	}
	now := s.timestamp()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return claimDOIs(ctx, tx, archiveID, claims, now)
	})
}

func claimDOIs(ctx context.Context, tx *sqlx.Tx, archiveID string, claims []DOIClaim, now time.Time) error {
	if len(claims) == 0 {
		return nil
	}
	var next int
	if err := tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM dois WHERE archive_id = ?`, archiveID); err != nil {
		return fmt.Errorf("claim DOIs: %w", err)
	}
	for _, claim := range claims {
		doi := strings.TrimSpace(claim.DOI)
		if doi == "" {
			return errors.New("claim DOIs: empty DOI")
		}
		var owner string
		err := tx.GetContext(ctx, &owner, `SELECT archive_id FROM dois WHERE doi = ?`, doi)
		switch {
		case err == nil && owner == archiveID:
			continue
		case err == nil:
			return fmt.Errorf("%w: %s is held by %s", ErrDOIConflict, doi, owner)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("claim DOIs: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dois (doi, archive_id, position, resource, kind, claimed_at) VALUES (?, ?, ?, ?, ?, ?)`,
			doi, archiveID, next, claim.Resource, claim.Kind, formatTime(now),
		); err != nil {
			return fmt.Errorf("claim DOI %s: %w", doi, err)
		}
		next++
	}
	return nil
}

// DOIsForArchive returns the DOIs claimed by an archive in claim order.
func (s *Store) DOIsForArchive(ctx context.Context, archiveID string) ([]DOIClaim, error) {
	var rows []doiRow
	if err := s.db.SelectContext(ensureContext(ctx), &rows,
		`SELECT doi, archive_id, resource, kind, claimed_at FROM dois WHERE archive_id = ? ORDER BY position`,
		archiveID,
	); err != nil {
		return nil, fmt.Errorf("select DOIs: %w", err)
	}
	out := make([]DOIClaim, 0, len(rows))
	for _, row := range rows {
		out = append(out, DOIClaim{
			DOI:       row.DOI,
			ArchiveID: row.ArchiveID,
			Resource:  row.Resource,
			Kind:      row.Kind,
			ClaimedAt: parseTime(row.ClaimedAt),
		})
	}
	return out, nil
}
