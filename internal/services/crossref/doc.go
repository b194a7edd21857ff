// Package crossref talks to the two Crossref endpoints the deposit workflow
// needs: the metadata deposit servlet and the DOI handle resolver used to
// verify that registered DOIs resolve.
package crossref
