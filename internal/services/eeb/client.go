// Package eeb queries the Early Evidence Base, the platform that hosts the
// reviews once their DOIs resolve. Review DOIs point at EEB pages, so a
// deposition is only sound when EEB shows the same reviews without DOIs.
package eeb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mecadoi/internal/services"
)

const stage = "eeb-lookup"

// Review is the part of an EEB review or response record the workflow reads.
type Review struct {
	DOI         string `json:"doi"`
	PositionIdx int    `json:"position_idx"`
	PostingDate string `json:"posting_date"`
}

// ReviewProcess groups the reviews and author response EEB has for a preprint.
type ReviewProcess struct {
	Reviews  []Review `json:"reviews"`
	Response *Review  `json:"response"`
}

// Article is one EEB article record.
type Article struct {
	DOI           string        `json:"doi"`
	Title         string        `json:"title"`
	ReviewProcess ReviewProcess `json:"review_process"`
}

// Client looks up articles on the EEB API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New creates an EEB client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("eeb base url required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Articles returns the EEB records for a preprint DOI. An unknown DOI fails
// with services.ErrNotFound.
func (c *Client) Articles(ctx context.Context, preprintDOI string) ([]Article, error) {
	preprintDOI = strings.TrimSpace(preprintDOI)
	if preprintDOI == "" {
		return nil, services.Wrap(services.ErrValidation, stage, "articles", "preprint doi required", nil)
	}
	endpoint := c.baseURL + "/doi/" + (&url.URL{Path: preprintDOI}).EscapedPath()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		marker := services.ErrTransport
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, stage, "articles", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, stage, "articles", "no eeb article for "+preprintDOI, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransport, stage, "articles", fmt.Sprintf("eeb returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}
	var payload []Article
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransport, stage, "articles", "decode eeb response", err)
	}
	return payload, nil
}

// Expectation is what a deposition registers for one preprint.
type Expectation struct {
	Reviews     int
	AuthorReply bool
}

// Check compares EEB's record of a preprint with a deposition.
type Check struct {
	PreprintDOI string
	Expected    Expectation
	// Articles is the number of EEB records found for the preprint. The
	// remaining fields describe the record when there is exactly one.
	Articles     int
	Reviews      int
	AuthorReply  bool
	AssignedDOIs []string
}

// Consistent reports whether EEB shows exactly one article with the reviews
// and author reply the deposition registers.
func (c Check) Consistent() bool {
	return c.Articles == 1 && c.Reviews == c.Expected.Reviews && c.AuthorReply == c.Expected.AuthorReply
}

// Problem describes why the check fails, or returns "" when the deposition
// may go ahead.
func (c Check) Problem() string {
	if c.Articles != 1 {
		return fmt.Sprintf("received %d results from EEB for preprint DOI %s", c.Articles, c.PreprintDOI)
	}
	if c.Consistent() && len(c.AssignedDOIs) == 0 {
		return ""
	}
	msg := fmt.Sprintf("deposition wants DOIs for %d reviews%s but EEB has %d reviews%s",
		c.Expected.Reviews, replyPhrase(c.Expected.AuthorReply, ""),
		c.Reviews, replyPhrase(c.AuthorReply, " and no author reply"))
	if len(c.AssignedDOIs) > 0 {
		msg += " with DOIs already assigned: " + strings.Join(c.AssignedDOIs, ", ")
	}
	return msg
}

func replyPhrase(present bool, absent string) string {
	if present {
		return " and an author reply"
	}
	return absent
}

// Check looks the preprint up and compares EEB's reviews with want. A
// preprint EEB does not know yields a Check with no articles.
func (c *Client) Check(ctx context.Context, preprintDOI string, want Expectation) (Check, error) {
	check := Check{PreprintDOI: strings.TrimSpace(preprintDOI), Expected: want}
	articles, err := c.Articles(ctx, preprintDOI)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return check, err
	}
	check.Articles = len(articles)
	if len(articles) != 1 {
		return check, nil
	}
	process := articles[0].ReviewProcess
	check.Reviews = len(process.Reviews)
	check.AuthorReply = process.Response != nil
	for _, r := range process.Reviews {
		if doi := strings.TrimSpace(r.DOI); doi != "" {
			check.AssignedDOIs = append(check.AssignedDOIs, doi)
		}
	}
	if r := process.Response; r != nil {
		if doi := strings.TrimSpace(r.DOI); doi != "" {
			check.AssignedDOIs = append(check.AssignedDOIs, doi)
		}
	}
	return check, nil
}
