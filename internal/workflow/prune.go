package workflow

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"mecadoi/internal/logging"
	"mecadoi/internal/services"
	"mecadoi/internal/store"
)

// PruneReport lists archive files removed, or that would be removed.
type PruneReport struct {
	DryRun  bool     `yaml:"dry_run"`
	Removed []string `yaml:"removed"`
	Missing []string `yaml:"missing,omitempty"`
	// Failed lists files that could not be removed.
	Failed []string `yaml:"failed,omitempty"`
}

// Prune deletes archive files whose record is DEPOSITION_SUCCEEDED or was
// acknowledged by an operator. Records are kept. A file that cannot be
// removed is listed under Failed and the remaining files are still pruned.
func (r *Runner) Prune(ctx context.Context, dryRun bool) (*PruneReport, error) {
	ctx = services.WithStage(ctx, "prune")
	logger := logging.WithContext(ctx, r.logger)
	records, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &PruneReport{DryRun: dryRun}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if rec.State != store.StateDepositionSucceeded && !rec.Acknowledged() {
			continue
		}
		if _, err := os.Stat(rec.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				report.Missing = append(report.Missing, rec.Path)
				continue
			}
			report.Failed = append(report.Failed, rec.Path)
			pruneFailed(logger, rec.ID, rec.Path, err)
			continue
		}
		if !dryRun {
			if err := os.Remove(rec.Path); err != nil {
				report.Failed = append(report.Failed, rec.Path)
				pruneFailed(logger, rec.ID, rec.Path, err)
				continue
			}
		}
		report.Removed = append(report.Removed, rec.Path)
		logger.Info("archive pruned",
			logging.String(logging.FieldArchiveID, rec.ID),
			logging.String("path", rec.Path),
			logging.Bool("dry_run", dryRun),
			logging.String(logging.FieldEventType, "archive_pruned"),
		)
	}
	return report, nil
}

func pruneFailed(logger *slog.Logger, archiveID, path string, err error) {
	logging.WarnWithContext(logger, "archive not pruned", "prune_failed",
		logging.String(logging.FieldArchiveID, archiveID),
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "remove the file by hand or fix its permissions"),
	)
}
