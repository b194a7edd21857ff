// Package preflight provides readiness checks for the directories and
// external services a deposit run depends on.
//
// The CLI "config validate --check" command runs them so an operator learns
// about unwritable paths or unreachable endpoints before a batch starts
// recording transport errors against every archive.
//
// Each service check is gated by its config toggle; disabled features are
// skipped.
package preflight
