// Package store persists the deposition lifecycle of every parsed archive in
// SQLite: one record per archive, an append-only attempt history and the
// registry of claimed DOIs.
//
// All state changes are conditional updates keyed on the expected prior state
// and the archive lease, so two writers can never both move the same archive
// forward.
package store
