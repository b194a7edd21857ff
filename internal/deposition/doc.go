// Package deposition renders Crossref peer review deposition files.
//
// Templates for DOIs, titles, and resource URLs are parsed once against a
// fixed token set. Generation takes explicit Params (timestamp and nonce); the
// per-review random DOI component is derived from them, so replaying stored
// Params yields a byte-identical document.
package deposition
