package testsupport

import (
	"path/filepath"
	"testing"

	"mecadoi/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The depositor and Crossref credentials are filled in so deposits validate;
// the EEB lookup is disabled unless WithEEB is given.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Depositor = config.Depositor{
		Name:          "Review Commons",
		Email:         "deposits@example.org",
		Registrant:    "EMBO",
		Institution:   "Review Commons",
		BatchIDPrefix: "rc",
	}
	cfgVal.Crossref.Username = "test-user"
	cfgVal.Crossref.Password = "test-password"
	cfgVal.EEB.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithCrossref points the deposit and resolver endpoints at a test server.
func WithCrossref(depositURL, resolverURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Crossref.DepositURL = depositURL
		b.cfg.Crossref.ResolverURL = resolverURL
	}
}

// WithEEB enables the EEB lookup against baseURL.
func WithEEB(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.EEB.Enabled = true
		b.cfg.EEB.BaseURL = baseURL
	}
}

// WithDOITemplate overrides the DOI template.
func WithDOITemplate(tmpl string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Templates.DOI = tmpl
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
