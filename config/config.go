package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL    string
	SearchPath string
	County     string
	CountyName string
	MaxPages   int

	Concurrency     int
	BatchSize       int
	RequestDelay    time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string

	MinSalePrice        int64
	DeniedInstruments   []string
	ResidentialCodes    []string
	ResidentialLandUses []string

	OutputDir    string
	OutputFormat string // csv, json, or dual

	Verbose     bool
	MetricsAddr string
	Schedule    string

	Mail MailConfig
}

// MailConfig holds SMTP settings for the weekly report.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	To       []string
	UseTLS   bool
}

// Enabled reports whether enough is configured to send mail.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.From != "" && len(m.To) > 0
}

// DefaultConfig returns conservative defaults for the county site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://assessment.cot.tn.gov",
		SearchPath:      "/RE_Assessment/SearchSales",
		County:          "075",
		CountyName:      "Rutherford",
		MaxPages:        200,
		Concurrency:     3,
		BatchSize:       10,
		RequestDelay:    1500 * time.Millisecond,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    time.Second,
		RetryBackoffMax: 10 * time.Second,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MinSalePrice:    10000,
		DeniedInstruments: []string{
			"Quitclaim",
			"Quit Claim",
			"Sheriff",
			"Trustee",
			"Foreclosure",
			"Tax Deed",
			"Executor",
			"Administrator",
			"Gift",
			"Death",
			"Affidavit",
			"Correction",
		},
		ResidentialCodes: []string{"00", "R"},
		ResidentialLandUses: []string{
			"RESIDENTIAL",
			"SINGLE FAMILY",
			"DUPLEX",
			"TRIPLEX",
			"QUADPLEX",
			"CONDO",
			"TOWNHOUSE",
			"ZERO LOT LINE",
			"MOBILE HOME",
		},
		OutputDir:    "output",
		OutputFormat: "dual",
		Mail: MailConfig{
			Port:     587,
			FromName: "Weekly Sales Report",
			UseTLS:   true,
		},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if strings.TrimSpace(c.County) == "" {
		return fmt.Errorf("county code cannot be empty")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Concurrency < 1 || c.Concurrency > 10 {
		return fmt.Errorf("concurrency must be between 1 and 10")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MinSalePrice < 0 {
		return fmt.Errorf("min sale price cannot be negative")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}
	if c.Mail.Enabled() {
		if c.Mail.Port <= 0 {
			return fmt.Errorf("smtp port must be positive")
		}
		if _, err := mail.ParseAddress(c.Mail.From); err != nil {
			return fmt.Errorf("invalid smtp from address: %w", err)
		}
		for _, to := range c.Mail.To {
			if _, err := mail.ParseAddress(to); err != nil {
				return fmt.Errorf("invalid report recipient %q: %w", to, err)
			}
		}
	}

	return nil
}
