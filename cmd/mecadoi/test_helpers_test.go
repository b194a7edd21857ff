package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"mecadoi/internal/deposition"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
	dataDir    string
	inbox      string
	outDir     string
	crossref   *crossrefStub
}

// crossrefStub answers deposits with SUCCESS, or FAILURE when reject is set,
// and resolves the DOIs it accepted.
type crossrefStub struct {
	mu         sync.Mutex
	reject     bool
	uploads    int
	registered map[string]bool
}

func (c *crossrefStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/servlet/deposit":
		file, _, err := r.FormFile("fname")
		if err != nil {
			http.Error(w, "no upload", http.StatusBadRequest)
			return
		}
		defer file.Close()
		document, _ := io.ReadAll(file)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.uploads++
		if c.reject {
			io.WriteString(w, `<html><body><h2>FAILURE</h2><p>Deposit rejected.</p></body></html>`)
			return
		}
		dois, _ := deposition.ExtractDOIs(document)
		for _, d := range dois {
			c.registered[d] = true
		}
		io.WriteString(w, `<html><body><h2>SUCCESS</h2><p>Your batch submission was successfully received.</p></body></html>`)
	case strings.HasPrefix(r.URL.Path, "/handles/"):
		doi := strings.TrimPrefix(r.URL.Path, "/handles/")
		c.mu.Lock()
		found := c.registered[doi]
		c.mu.Unlock()
		code := 100
		if found {
			code = 1
		}
		json.NewEncoder(w).Encode(map[string]any{"responseCode": code, "handle": doi})
	default:
		http.NotFound(w, r)
	}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("CROSSREF_USERNAME", "")
	t.Setenv("CROSSREF_PASSWORD", "")
	t.Setenv("MECADOI_DATA_DIR", "")

	stub := &crossrefStub{registered: make(map[string]bool)}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	env := &cliTestEnv{
		configPath: filepath.Join(base, "mecadoi.toml"),
		baseDir:    base,
		dataDir:    filepath.Join(base, "data"),
		inbox:      filepath.Join(base, "inbox"),
		outDir:     filepath.Join(base, "out"),
		crossref:   stub,
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[depositor]
name = "Review Commons"
email = "deposits@example.org"
registrant = "EMBO"
institution = "Review Commons"

[crossref]
deposit_url = %q
resolver_url = %q
username = "test-user"
password = "test-password"
timeout_seconds = 5

[eeb]
enabled = false

[logging]
level = "error"
`, env.dataDir, filepath.Join(base, "logs"), server.URL+"/servlet/deposit", server.URL+"/handles")
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
