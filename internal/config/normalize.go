package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDepositor()
	c.normalizeTemplates()
	c.normalizeCrossref()
	c.normalizeEEB()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		if value, ok := os.LookupEnv("MECADOI_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
			c.Paths.DataDir = value
		} else {
			c.Paths.DataDir = defaultDataDir
		}
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDepositor() {
	c.Depositor.Name = strings.TrimSpace(c.Depositor.Name)
	c.Depositor.Email = strings.TrimSpace(c.Depositor.Email)
	if c.Depositor.Email == "" {
		if value, ok := os.LookupEnv("DEPOSITOR_EMAIL"); ok {
			c.Depositor.Email = strings.TrimSpace(value)
		}
	}
	c.Depositor.Registrant = strings.TrimSpace(c.Depositor.Registrant)
	c.Depositor.Institution = strings.TrimSpace(c.Depositor.Institution)
	c.Depositor.BatchIDPrefix = strings.TrimSpace(c.Depositor.BatchIDPrefix)
	if c.Depositor.BatchIDPrefix == "" {
		c.Depositor.BatchIDPrefix = defaultBatchIDPrefix
	}
}

func (c *Config) normalizeTemplates() {
	c.Templates.DOI = strings.TrimSpace(c.Templates.DOI)
	c.Templates.ReviewTitle = strings.TrimSpace(c.Templates.ReviewTitle)
	c.Templates.ReviewResourceURL = strings.TrimSpace(c.Templates.ReviewResourceURL)
	c.Templates.AuthorReplyTitle = strings.TrimSpace(c.Templates.AuthorReplyTitle)
	c.Templates.AuthorReplyResourceURL = strings.TrimSpace(c.Templates.AuthorReplyResourceURL)
}

func (c *Config) normalizeCrossref() {
	if c.Crossref.Username == "" {
		if value, ok := os.LookupEnv("CROSSREF_USERNAME"); ok {
			c.Crossref.Username = value
		}
	}
	if c.Crossref.Password == "" {
		if value, ok := os.LookupEnv("CROSSREF_PASSWORD"); ok {
			c.Crossref.Password = value
		}
	}
	c.Crossref.Username = strings.TrimSpace(c.Crossref.Username)
	c.Crossref.DepositURL = strings.TrimSpace(c.Crossref.DepositURL)
	if c.Crossref.DepositURL == "" {
		c.Crossref.DepositURL = defaultCrossrefDepositURL
	}
	c.Crossref.ResolverURL = strings.TrimRight(strings.TrimSpace(c.Crossref.ResolverURL), "/")
	if c.Crossref.ResolverURL == "" {
		c.Crossref.ResolverURL = defaultCrossrefResolverURL
	}
	if c.Crossref.TimeoutSeconds <= 0 {
		c.Crossref.TimeoutSeconds = defaultCrossrefTimeout
	}
}

func (c *Config) normalizeEEB() {
	c.EEB.BaseURL = strings.TrimRight(strings.TrimSpace(c.EEB.BaseURL), "/")
	if c.EEB.BaseURL == "" {
		c.EEB.BaseURL = defaultEEBBaseURL
	}
	if c.EEB.TimeoutSeconds <= 0 {
		c.EEB.TimeoutSeconds = defaultEEBTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.LeaseSeconds <= 0 {
		c.Workflow.LeaseSeconds = defaultLeaseSeconds
	}
	if c.Workflow.DOIAttempts <= 0 {
		c.Workflow.DOIAttempts = defaultDOIAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
