package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mecadoi/internal/article"
	"mecadoi/internal/fileutil"
	"mecadoi/internal/logging"
	"mecadoi/internal/meca"
	"mecadoi/internal/services"
	"mecadoi/internal/store"
)

// InvalidArchive is a file that could not be read as a MECA archive.
type InvalidArchive struct {
	Path  string `yaml:"path"`
	Error string `yaml:"error"`
}

// ParsedArchive is one archive registered by a parse run.
type ParsedArchive struct {
	ID          string
	Path        string
	PreprintDOI string
	State       store.State
}

// ParseReport lists the outcome of a parse run.
type ParseReport struct {
	RunID    string
	Dir      string
	Archives []ParsedArchive
	Invalid  []InvalidArchive
}

// Grouped returns archive names keyed by lower-cased state, with unreadable
// files under "invalid".
func (p *ParseReport) Grouped() map[string][]string {
	out := make(map[string][]string)
	for _, a := range p.Archives {
		key := strings.ToLower(string(a.State))
		out[key] = append(out[key], displayName(a.Path, a.PreprintDOI))
	}
	for _, inv := range p.Invalid {
		out["invalid"] = append(out["invalid"], inv.Path)
	}
	return out
}

// ArchiveID derives the store key of an archive file: its base name without
// extension.
func ArchiveID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func displayName(path, preprintDOI string) string {
	if preprintDOI != "" {
		return path + "|" + preprintDOI
	}
	return path
}

// StageInput moves inputDir to <outputDir>/parsed/<runID>, recreates an empty
// inputDir and returns every regular file found in the moved tree.
func StageInput(inputDir, outputDir, runID string) (string, []string, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return "", nil, fmt.Errorf("stat input dir: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("input %s is not a directory", inputDir)
	}
	parsedRoot := filepath.Join(outputDir, "parsed")
	if err := os.MkdirAll(parsedRoot, 0o755); err != nil {
		return "", nil, fmt.Errorf("create parsed dir: %w", err)
	}
	target := filepath.Join(parsedRoot, runID)
	if err := fileutil.Move(inputDir, target); err != nil {
		return "", nil, fmt.Errorf("move input dir: %w", err)
	}
	if err := os.MkdirAll(inputDir, info.Mode().Perm()); err != nil {
		return "", nil, fmt.Errorf("recreate input dir: %w", err)
	}

	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("list staged files: %w", err)
	}
	sort.Strings(files)
	return target, files, nil
}

// Parse reads each file as a MECA archive and registers it in the store with
// its modification time as receipt date. Unreadable files are reported and
// not stored. A store failure aborts the run.
func (r *Runner) Parse(ctx context.Context, runID string, files []string) (*ParseReport, error) {
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	report := &ParseReport{RunID: runID}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		archiveCtx := services.WithStage(services.WithArchiveID(ctx, ArchiveID(path)), "parse")
		parsed, err := r.parseOne(archiveCtx, path)
		if err != nil {
			var invalid *invalidArchiveError
			if errors.As(err, &invalid) {
				logging.WarnWithContext(logging.WithContext(archiveCtx, r.logger), "archive not readable", "archive_invalid",
					logging.String("path", path),
					logging.Error(invalid.err),
					logging.String(logging.FieldErrorHint, "file is not a MECA archive; it stays in the parsed directory"),
				)
				report.Invalid = append(report.Invalid, InvalidArchive{Path: path, Error: invalid.err.Error()})
				continue
			}
			return report, err
		}
		report.Archives = append(report.Archives, *parsed)
	}
	logger.Info("parse complete",
		logging.Int("archives", len(report.Archives)),
		logging.Int("invalid", len(report.Invalid)),
		logging.String(logging.FieldEventType, "parse_complete"),
	)
	return report, nil
}

type invalidArchiveError struct{ err error }

func (e *invalidArchiveError) Error() string { return e.err.Error() }
func (e *invalidArchiveError) Unwrap() error { return e.err }

func (r *Runner) parseOne(ctx context.Context, path string) (*ParsedArchive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &invalidArchiveError{err: err}
	}
	manuscript, err := meca.Parse(path)
	if err != nil {
		return nil, &invalidArchiveError{err: err}
	}
	snapshot, err := json.Marshal(manuscript)
	if err != nil {
		return nil, fmt.Errorf("encode manuscript %s: %w", path, err)
	}

	id := ArchiveID(path)
	state := store.State(article.Classify(manuscript))
	if manuscript.PreprintDOI != "" {
		others, err := r.store.FindByPreprintDOI(ctx, manuscript.PreprintDOI)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.ID != id {
				state = store.StateDuplicate
				break
			}
		}
	}

	rec, err := r.store.UpsertRecord(ctx, store.Record{
		ID:             id,
		Path:           path,
		PreprintDOI:    manuscript.PreprintDOI,
		Title:          manuscript.Title,
		ReceivedAt:     info.ModTime().UTC(),
		State:          state,
		ManuscriptJSON: string(snapshot),
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, r.logger).Info("archive registered",
		logging.String("path", path),
		logging.String(logging.FieldState, string(rec.State)),
		logging.String(logging.FieldEventType, "archive_registered"),
	)
	return &ParsedArchive{ID: rec.ID, Path: path, PreprintDOI: rec.PreprintDOI, State: rec.State}, nil
}
