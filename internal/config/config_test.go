package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mecadoi/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CROSSREF_USERNAME", "embo")
	t.Setenv("CROSSREF_PASSWORD", "secret")
	t.Setenv("DEPOSITOR_EMAIL", "depositor@example.org")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "mecadoi")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "mecadoi.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Crossref.Username != "embo" || cfg.Crossref.Password != "secret" {
		t.Fatalf("expected crossref credentials from env, got %q/%q", cfg.Crossref.Username, cfg.Crossref.Password)
	}
	if cfg.Depositor.Email != "depositor@example.org" {
		t.Fatalf("expected depositor email from env, got %q", cfg.Depositor.Email)
	}
	if cfg.Crossref.ResolverURL != config.Default().Crossref.ResolverURL {
		t.Fatalf("unexpected resolver url: %q", cfg.Crossref.ResolverURL)
	}
	if cfg.Workflow.DOIAttempts != config.Default().Workflow.DOIAttempts {
		t.Fatalf("unexpected doi attempts: %d", cfg.Workflow.DOIAttempts)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	custom := config.Default()
	custom.Paths.DataDir = "~/deposits"
	custom.Depositor.Name = "EMBO Press"
	custom.Crossref.ResolverURL = "https://resolver.example.org/api/handles/"
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "deposits") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Crossref.ResolverURL != "https://resolver.example.org/api/handles" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Crossref.ResolverURL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
	if cfg.Depositor.Name != "EMBO Press" {
		t.Fatalf("unexpected depositor name: %q", cfg.Depositor.Name)
	}
}

func TestLoadRejectsUnknownTemplateToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := "[templates]\ndoi = \"10.15252/rc.$year$colour\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected error for unknown template token")
	}
	if !strings.Contains(err.Error(), "colour") {
		t.Fatalf("expected token name in error, got %v", err)
	}
}

func TestValidateRejectsBadLogging(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestValidateDepositRequiresCredentialsOnlyForRealRuns(t *testing.T) {
	cfg := config.Default()
	cfg.Depositor = config.Depositor{Name: "EMBO", Email: "a@b.org", Registrant: "EMBO", Institution: "EMBO", BatchIDPrefix: "rc"}

	if err := cfg.ValidateDeposit(true); err != nil {
		t.Fatalf("dry run should not need credentials: %v", err)
	}
	if err := cfg.ValidateDeposit(false); err == nil {
		t.Fatal("expected missing credentials error")
	}
	cfg.Crossref.Username = "user"
	cfg.Crossref.Password = "pass"
	if err := cfg.ValidateDeposit(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Depositor.Email = ""
	if err := cfg.ValidateDeposit(true); err == nil {
		t.Fatal("expected missing depositor email error")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config did not load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Templates.DOI != config.Default().Templates.DOI {
		t.Fatalf("unexpected sample DOI template: %q", cfg.Templates.DOI)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
