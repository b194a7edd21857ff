package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Depositor identifies the organisation submitting deposition files.
type Depositor struct {
	Name          string `toml:"name"`
	Email         string `toml:"email"`
	Registrant    string `toml:"registrant"`
	Institution   string `toml:"institution"`
	BatchIDPrefix string `toml:"batch_id_prefix"`
}

// Templates holds the substitution templates used when rendering deposition
// records. References use $name or ${name}.
type Templates struct {
	DOI                    string `toml:"doi"`
	ReviewTitle            string `toml:"review_title"`
	ReviewResourceURL      string `toml:"review_resource_url"`
	AuthorReplyTitle       string `toml:"author_reply_title"`
	AuthorReplyResourceURL string `toml:"author_reply_resource_url"`
}

// Crossref contains the deposit servlet and resolver settings.
type Crossref struct {
	DepositURL     string `toml:"deposit_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	ResolverURL    string `toml:"resolver_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EEB configures the Early Evidence Base lookup used before submission.
type EEB struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains batch run tuning.
type Workflow struct {
	LeaseSeconds      int  `toml:"lease_seconds"`
	DOIAttempts       int  `toml:"doi_attempts"`
	VerifyAfterSubmit bool `toml:"verify_after_submit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mecadoi.
//
// Configuration sections by subsystem:
//   - Paths: database, lock, report, and log locations
//   - Depositor: identity written into every deposition batch header
//   - Templates: DOI, title, and resource URL patterns
//   - Crossref: deposit credentials and resolver endpoint
//   - EEB: pre-submission check for DOIs that already exist
//   - Workflow: lease duration and DOI claim attempts
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Depositor Depositor `toml:"depositor"`
	Templates Templates `toml:"templates"`
	Crossref  Crossref  `toml:"crossref"`
	EEB       EEB       `toml:"eeb"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mecadoi.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding deposition records.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mecadoi.db")
}

// LockPath returns the file used to serialize batch runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mecadoi.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
