package config

const (
	defaultConfigPath             = "~/.config/mecadoi/config.toml"
	defaultDataDir                = "~/.local/share/mecadoi"
	defaultLogDir                 = "~/.local/share/mecadoi/logs"
	defaultBatchIDPrefix          = "rc"
	defaultDOITemplate            = "10.15252/rc.$year$random"
	defaultReviewTitle            = `Review #$review_number of "$article_title"`
	defaultReviewResourceURL      = "https://eeb.embo.org/doi/$article_doi#rev${revision}-${running_number}"
	defaultAuthorReplyTitle       = `Author response to the reviews of "$article_title"`
	defaultAuthorReplyResourceURL = "https://eeb.embo.org/doi/$article_doi#rev${revision}-reply"
	defaultCrossrefDepositURL     = "https://doi.crossref.org/servlet/deposit"
	defaultCrossrefResolverURL    = "https://doi.org/api/handles"
	defaultCrossrefTimeout        = 60
	defaultEEBBaseURL             = "https://eeb.embo.org/api/v1"
	defaultEEBTimeout             = 30
	defaultLeaseSeconds           = 600
	defaultDOIAttempts            = 5
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Depositor: Depositor{
			BatchIDPrefix: defaultBatchIDPrefix,
		},
		Templates: Templates{
			DOI:                    defaultDOITemplate,
			ReviewTitle:            defaultReviewTitle,
			ReviewResourceURL:      defaultReviewResourceURL,
			AuthorReplyTitle:       defaultAuthorReplyTitle,
			AuthorReplyResourceURL: defaultAuthorReplyResourceURL,
		},
		Crossref: Crossref{
			DepositURL:     defaultCrossrefDepositURL,
			ResolverURL:    defaultCrossrefResolverURL,
			TimeoutSeconds: defaultCrossrefTimeout,
		},
		EEB: EEB{
			Enabled:        true,
			BaseURL:        defaultEEBBaseURL,
			TimeoutSeconds: defaultEEBTimeout,
		},
		Workflow: Workflow{
			LeaseSeconds:      defaultLeaseSeconds,
			DOIAttempts:       defaultDOIAttempts,
			VerifyAfterSubmit: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
