package store

import "errors"

var (
	// ErrNotFound means no record exists for the archive.
	ErrNotFound = errors.New("archive record not found")
	// ErrStateConflict means the record was not in the expected prior state,
	// or the requested transition is not part of the lifecycle.
	ErrStateConflict = errors.New("state conflict")
	// ErrLeaseHeld means another owner holds an unexpired lease on the archive.
	ErrLeaseHeld = errors.New("archive lease held by another run")
	// ErrDOIConflict means a DOI is already claimed by a different archive.
	ErrDOIConflict = errors.New("DOI already claimed")
)
