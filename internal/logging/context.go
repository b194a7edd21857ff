package logging

import (
	"context"
	"log/slog"

	"mecadoi/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldArchiveID identifies the MECA archive a record refers to.
	FieldArchiveID = "archive_id"
	// FieldStage names the lifecycle step (generate, submit, verify).
	FieldStage = "stage"
	// FieldRunID correlates every line emitted by one batch invocation.
	FieldRunID = "run_id"
	// FieldState is the lifecycle state after a transition.
	FieldState     = "state"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if id, ok := services.ArchiveIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldArchiveID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
