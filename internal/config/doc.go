// Package config loads, normalizes, and validates mecadoi configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CROSSREF_USERNAME and DEPOSITOR_EMAIL. Deposition templates are parsed while
// validating so a typo in a token name fails at startup rather than halfway
// through a batch.
package config
