// Package logging assembles the slog loggers used by the CLI and the batch
// workflow.
//
// Console output is rendered by charmbracelet/log; JSON output and the
// persistent log file use the standard JSON handler with short key names.
// Context helpers tag lines with run and archive identifiers so one deposit
// run can be followed end to end in the log file.
package logging
