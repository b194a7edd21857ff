// Package workflow runs the batch operations of mecadoi: parsing incoming
// MECA archives into the store, depositing review DOIs with Crossref,
// verifying them, and pruning archive files that are no longer needed.
//
// A deposit run walks the selected archives sequentially. Each archive is
// processed under a store lease, and every state change is persisted only
// after the external call it depends on has completed, so an interrupted run
// can always be resumed by invoking it again.
package workflow
