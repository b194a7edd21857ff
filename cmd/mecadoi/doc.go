// Package main hosts the mecadoi CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into batch runs against
// the deposition store: staging and parsing MECA archives, depositing their
// reviews with Crossref, pruning finished archives, and inspecting or
// resetting individual records. Configuration, logging, and the run lock are
// resolved here so the workflow package stays free of terminal concerns.
package main
