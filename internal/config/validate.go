package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"mecadoi/internal/deposition"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTemplates(); err != nil {
		return err
	}
	if err := c.validateCrossref(); err != nil {
		return err
	}
	if err := c.validateEEB(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateDeposit checks the settings a deposit run needs beyond Validate.
// Credentials are only required when submissions will actually be sent.
func (c *Config) ValidateDeposit(dryRun bool) error {
	if c.Depositor.Name == "" {
		return errors.New("depositor.name must be set to generate deposition files")
	}
	if c.Depositor.Email == "" {
		return errors.New("depositor.email must be set (or DEPOSITOR_EMAIL) to generate deposition files")
	}
	if c.Depositor.Registrant == "" {
		return errors.New("depositor.registrant must be set to generate deposition files")
	}
	if c.Depositor.Institution == "" {
		return errors.New("depositor.institution must be set to generate deposition files")
	}
	if dryRun {
		return nil
	}
	if c.Crossref.Username == "" || c.Crossref.Password == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("crossref.username and crossref.password are required. Set CROSSREF_USERNAME/CROSSREF_PASSWORD or edit %s (create with 'mecadoi config init')", defaultPath)
	}
	return nil
}

// TemplateSet returns the configured templates in the generator's shape.
func (c *Config) TemplateSet() deposition.TemplateSet {
	return deposition.TemplateSet{
		DOI:                    c.Templates.DOI,
		ReviewTitle:            c.Templates.ReviewTitle,
		ReviewResourceURL:      c.Templates.ReviewResourceURL,
		AuthorReplyTitle:       c.Templates.AuthorReplyTitle,
		AuthorReplyResourceURL: c.Templates.AuthorReplyResourceURL,
	}
}

func (c *Config) validateTemplates() error {
	if _, err := deposition.ParseTemplates(c.TemplateSet()); err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	return nil
}

func (c *Config) validateCrossref() error {
	if err := validateHTTPURL("crossref.deposit_url", c.Crossref.DepositURL); err != nil {
		return err
	}
	return validateHTTPURL("crossref.resolver_url", c.Crossref.ResolverURL)
}

func (c *Config) validateEEB() error {
	if !c.EEB.Enabled {
		return nil
	}
	return validateHTTPURL("eeb.base_url", c.EEB.BaseURL)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(field, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", field, value)
	}
	return nil
}
