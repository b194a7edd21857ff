package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mecadoi/internal/services"
)

// Handle API response codes.
const (
	handleFound    = 1
	handleNotFound = 100
)

// VerificationResult compares the DOIs a deposition registered with what the
// resolver knows about.
type VerificationResult struct {
	Expected []string
	Matched  []string
	Missing  []string
}

// OK reports whether every expected DOI resolves.
func (r VerificationResult) OK() bool {
	return len(r.Expected) > 0 && len(r.Matched) == len(r.Expected)
}

// Summary describes the result in one line.
func (r VerificationResult) Summary() string {
	if r.OK() {
		return fmt.Sprintf("all %d DOIs resolve", len(r.Expected))
	}
	return fmt.Sprintf("%d of %d DOIs resolve; missing %s", len(r.Matched), len(r.Expected), strings.Join(r.Missing, ", "))
}

type handleResponse struct {
	ResponseCode int    `json:"responseCode"`
	Handle       string `json:"handle"`
}

// Verify checks each DOI against the handle resolver. A DOI that is unknown
// to the resolver counts as missing; any transport failure aborts the whole
// verification with an error marked services.ErrTransport.
func (c *Client) Verify(ctx context.Context, dois []string) (VerificationResult, error) {
	result := VerificationResult{Expected: append([]string(nil), dois...)}
	for _, doi := range dois {
		found, err := c.resolve(ctx, doi)
		if err != nil {
			return VerificationResult{}, err
		}
		if found {
			result.Matched = append(result.Matched, doi)
		} else {
			result.Missing = append(result.Missing, doi)
		}
	}
	return result, nil
}

func (c *Client) resolve(ctx context.Context, doi string) (bool, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return false, nil
	}
	endpoint := c.resolverURL + "/" + (&url.URL{Path: doi}).EscapedPath()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return false, transportError(stageVerify, "resolve "+doi, fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, services.Wrap(services.ErrTransport, stageVerify, "resolve "+doi, fmt.Sprintf("resolver returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}
	var payload handleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return false, services.Wrap(services.ErrTransport, stageVerify, "resolve "+doi, "decode resolver response", err)
	}
	switch payload.ResponseCode {
	case handleFound:
		return true, nil
	case handleNotFound:
		return false, nil
	default:
		return false, services.Wrap(services.ErrTransport, stageVerify, "resolve "+doi, fmt.Sprintf("unexpected resolver response code %d", payload.ResponseCode), nil)
	}
}
