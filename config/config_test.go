package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero concurrency",
			mutate: func(cfg *Config) {
				cfg.Concurrency = 0
			},
			wantErr: "concurrency",
		},
		{
			name: "concurrency above cap",
			mutate: func(cfg *Config) {
				cfg.Concurrency = 11
			},
			wantErr: "concurrency",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "blank county",
			mutate: func(cfg *Config) {
				cfg.County = "  "
			},
			wantErr: "county",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.RequestDelay = -time.Millisecond
			},
			wantErr: "request delay",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "negative min price",
			mutate: func(cfg *Config) {
				cfg.MinSalePrice = -1
			},
			wantErr: "min sale price",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "bad schedule",
			mutate: func(cfg *Config) {
				cfg.Schedule = "every monday"
			},
			wantErr: "schedule",
		},
		{
			name: "bad recipient",
			mutate: func(cfg *Config) {
				cfg.Mail.Host = "smtp.example.test"
				cfg.Mail.From = "reports@example.test"
				cfg.Mail.To = []string{"not-an-address"}
			},
			wantErr: "recipient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Mail.Enabled() {
		t.Fatalf("mail should be disabled without smtp settings")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SALES_COUNTY", "094")
	t.Setenv("SALES_CONCURRENCY", "5")
	t.Setenv("SALES_DELAY_MS", "250")
	t.Setenv("SALES_MIN_SALE_PRICE", "25000")
	t.Setenv("SALES_DENIED_INSTRUMENTS", "Quitclaim, Sheriff ,,")
	t.Setenv("SALES_SMTP_HOST", "smtp.example.test")
	t.Setenv("SALES_SMTP_FROM", "reports@example.test")
	t.Setenv("SALES_REPORT_TO", "a@example.test,b@example.test")
	t.Setenv("SALES_SMTP_USE_TLS", "false")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}

	if cfg.County != "094" || cfg.Concurrency != 5 {
		t.Fatalf("county/concurrency = %q/%d", cfg.County, cfg.Concurrency)
	}
	if cfg.RequestDelay != 250*time.Millisecond {
		t.Fatalf("delay = %v", cfg.RequestDelay)
	}
	if cfg.MinSalePrice != 25000 {
		t.Fatalf("min price = %d", cfg.MinSalePrice)
	}
	if len(cfg.DeniedInstruments) != 2 || cfg.DeniedInstruments[1] != "Sheriff" {
		t.Fatalf("denied = %v", cfg.DeniedInstruments)
	}
	if !cfg.Mail.Enabled() || cfg.Mail.UseTLS || len(cfg.Mail.To) != 2 {
		t.Fatalf("mail = %+v", cfg.Mail)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestApplyEnvRejectsBadInt(t *testing.T) {
	t.Setenv("SALES_MAX_PAGES", "lots")
	if err := ApplyEnv(DefaultConfig()); err == nil || !strings.Contains(err.Error(), "SALES_MAX_PAGES") {
		t.Fatalf("expected SALES_MAX_PAGES error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SALES_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SALES_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, ok := EnvString("SALES_TEST_DOTENV"); !ok || got != "loaded" {
		t.Fatalf("SALES_TEST_DOTENV = %q, %v", got, ok)
	}
}
