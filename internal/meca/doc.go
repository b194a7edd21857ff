// Package meca reads Manuscript Exchange Common Approach archives.
//
// A MECA archive is a zip holding manifest.xml plus the files it indexes. The
// manifest item types article-metadata, review-metadata and "Response to
// Reviewers" locate the JATS article XML, the review history, and the author
// responses. Parse turns those into a Manuscript; any structural problem is
// reported as ErrInvalidArchive.
package meca
