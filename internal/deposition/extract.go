package deposition

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

type extractedBatch struct {
	BatchID     string `xml:"head>doi_batch_id"`
	PeerReviews []struct {
		Type string `xml:"type,attr"`
		DOI  string `xml:"doi_data>doi"`
	} `xml:"body>peer_review"`
}

// ExtractDOIs reads the DOIs a stored deposition document registers, in
// document order.
func ExtractDOIs(document []byte) ([]string, error) {
	var batch extractedBatch
	if err := xml.NewDecoder(bytes.NewReader(document)).Decode(&batch); err != nil {
		return nil, fmt.Errorf("parse deposition document: %w", err)
	}
	dois := make([]string, 0, len(batch.PeerReviews))
	for _, pr := range batch.PeerReviews {
		if doi := strings.TrimSpace(pr.DOI); doi != "" {
			dois = append(dois, doi)
		}
	}
	if len(dois) == 0 {
		return nil, fmt.Errorf("deposition document %q registers no DOIs", batch.BatchID)
	}
	return dois, nil
}
