// Package services defines shared utilities consumed by the batch workflow and
// the external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, archive IDs, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can tell
//     transport failures (retry later, nothing recorded) from rejections and
//     validation problems (recorded against the archive).
//
// The HTTP clients for Crossref and Early Evidence Base live in subpackages.
package services
