package deposition

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Params are the non-deterministic inputs of a generation. Persisting them
// lets a retry reproduce the exact same document.
type Params struct {
	Timestamp time.Time
	Nonce     string
}

func (p Params) validate() error {
	if p.Timestamp.IsZero() {
		return fmt.Errorf("%w: generation timestamp not supplied", ErrGenerationFailed)
	}
	if strings.TrimSpace(p.Nonce) == "" {
		return fmt.Errorf("%w: generation nonce not supplied", ErrGenerationFailed)
	}
	return nil
}

// BatchTimestamp is the Crossref head timestamp: nanoseconds since the epoch.
func (p Params) BatchTimestamp() string {
	return strconv.FormatInt(p.Timestamp.UnixNano(), 10)
}

const randomDigits = 6

// randomToken derives the disambiguating part of a DOI from the nonce and the
// event's position, so equal params always give equal DOIs.
func (p Params) randomToken(articleDOI string, revision, running int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", p.Nonce, articleDOI, revision, running)))
	n := binary.BigEndian.Uint64(sum[:8]) % 1_000_000
	return fmt.Sprintf("%0*d", randomDigits, n)
}
