package crossref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"mecadoi/internal/services"
)

const (
	stageSubmit = "crossref-submit"
	stageVerify = "crossref-verify"

	maxResponseBytes = 1 << 20
)

// Credentials authenticate against the deposit servlet.
type Credentials struct {
	Username string
	Password string
}

// Client submits deposition files and checks DOI resolution.
type Client struct {
	depositURL  string
	resolverURL string
	credentials Credentials
	httpClient  *http.Client
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

// New creates a Crossref client. Credentials may be empty for clients that
// only verify.
func New(depositURL, resolverURL string, creds Credentials, opts ...Option) (*Client, error) {
	depositURL = strings.TrimSpace(depositURL)
	if depositURL == "" {
		return nil, errors.New("crossref deposit url required")
	}
	resolverURL = strings.TrimSpace(resolverURL)
	if resolverURL == "" {
		return nil, errors.New("crossref resolver url required")
	}
	client := &Client{
		depositURL:  depositURL,
		resolverURL: strings.TrimRight(resolverURL, "/"),
		credentials: creds,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SubmissionResult is the servlet's answer to an upload.
type SubmissionResult struct {
	Accepted    bool
	HTTPStatus  int
	Status      string
	Messages    []string
	RawResponse string
}

// Summary joins the status heading and messages into one line.
func (r SubmissionResult) Summary() string {
	parts := make([]string, 0, len(r.Messages)+1)
	if r.Status != "" {
		parts = append(parts, r.Status)
	}
	parts = append(parts, r.Messages...)
	if len(parts) == 0 {
		return fmt.Sprintf("HTTP %d", r.HTTPStatus)
	}
	return strings.Join(parts, ": ")
}

// Submit uploads one deposition document. Transport failures return an error
// marked services.ErrTransport; an application-level rejection returns a
// result with Accepted false and a nil error.
func (c *Client) Submit(ctx context.Context, filename string, document []byte) (SubmissionResult, error) {
	if strings.TrimSpace(c.credentials.Username) == "" || c.credentials.Password == "" {
		return SubmissionResult{}, services.Wrap(services.ErrConfiguration, stageSubmit, "credentials", "crossref username and password required", nil)
	}
	if strings.TrimSpace(filename) == "" {
		filename = "deposition.xml"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := [][2]string{
		{"operation", "doMDUpload"},
		{"login_id", c.credentials.Username},
		{"login_passwd", c.credentials.Password},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return SubmissionResult{}, fmt.Errorf("build multipart form: %w", err)
		}
	}
	part, err := form.CreateFormFile("fname", filename)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return SubmissionResult{}, fmt.Errorf("build multipart form: %w", err)
	}
	if err := form.Close(); err != nil {
		return SubmissionResult{}, fmt.Errorf("build multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.depositURL, &body)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return SubmissionResult{}, transportError(stageSubmit, "upload", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return SubmissionResult{}, transportError(stageSubmit, "read response", "", err)
	}
	if isTransportStatus(resp.StatusCode) {
		return SubmissionResult{}, services.Wrap(services.ErrTransport, stageSubmit, "upload", fmt.Sprintf("deposit servlet returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	result := SubmissionResult{HTTPStatus: resp.StatusCode, RawResponse: string(raw)}
	result.Status, result.Messages = parseDepositResponse(raw)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Accepted = !strings.EqualFold(result.Status, "FAILURE")
	}
	return result, nil
}

// isTransportStatus reports HTTP statuses that say nothing about the document
// itself: server faults, authentication and throttling.
func isTransportStatus(code int) bool {
	switch {
	case code >= 500:
		return true
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func transportError(stage, operation, message string, err error) error {
	marker := services.ErrTransport
	if errors.Is(err, context.DeadlineExceeded) {
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, stage, operation, message, err)
}
