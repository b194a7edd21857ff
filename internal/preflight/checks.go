package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const endpointTimeout = 10 * time.Second

// CheckEndpoint verifies that an HTTP endpoint answers. Any response below
// 500 counts as reachable: the deposit servlet rejects bare GETs and the
// resolver root has no handle, but both prove the service is up.
func CheckEndpoint(ctx context.Context, name, endpoint string) Result {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	client := &http.Client{Timeout: endpointTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
}

// CheckCredentials reports whether Crossref credentials are configured. It
// cannot tell whether they are valid; only a deposit does.
func CheckCredentials(username, password string) Result {
	const name = "Crossref credentials"
	switch {
	case strings.TrimSpace(username) == "":
		return Result{Name: name, Detail: "username missing (set crossref.username or CROSSREF_USERNAME)"}
	case strings.TrimSpace(password) == "":
		return Result{Name: name, Detail: "password missing (set crossref.password or CROSSREF_PASSWORD)"}
	default:
		return Result{Name: name, Passed: true, Detail: "configured for " + username}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("host %s not found", dnsErr.Name)
	}
	return err.Error()
}
