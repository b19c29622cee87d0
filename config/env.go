package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment variable the scraper reads.
const EnvPrefix = "SALES_"

// LoadDotEnv loads variables from the given files without overriding the
// real environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key when set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvMillis parses key as a number of milliseconds.
func EnvMillis(key string) (time.Duration, bool, error) {
	value, ok, err := EnvInt(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	return time.Duration(value) * time.Millisecond, true, nil
}

// EnvList splits key on commas, dropping blanks.
func EnvList(key string) ([]string, bool) {
	raw, ok := EnvString(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, len(out) > 0
}

// ApplyEnv overlays SALES_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"BASE_URL":       &cfg.BaseURL,
		"SEARCH_PATH":    &cfg.SearchPath,
		"COUNTY":         &cfg.County,
		"COUNTY_NAME":    &cfg.CountyName,
		"USER_AGENT":     &cfg.UserAgent,
		"OUTPUT_DIR":     &cfg.OutputDir,
		"OUTPUT_FORMAT":  &cfg.OutputFormat,
		"METRICS_ADDR":   &cfg.MetricsAddr,
		"SCHEDULE":       &cfg.Schedule,
		"SMTP_HOST":      &cfg.Mail.Host,
		"SMTP_USERNAME":  &cfg.Mail.Username,
		"SMTP_PASSWORD":  &cfg.Mail.Password,
		"SMTP_FROM":      &cfg.Mail.From,
		"SMTP_FROM_NAME": &cfg.Mail.FromName,
	}
	for key, dst := range strs {
		if value, ok := EnvString(EnvPrefix + key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"MAX_PAGES":   &cfg.MaxPages,
		"CONCURRENCY": &cfg.Concurrency,
		"BATCH_SIZE":  &cfg.BatchSize,
		"MAX_RETRIES": &cfg.MaxRetries,
		"SMTP_PORT":   &cfg.Mail.Port,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(EnvPrefix + key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"DELAY_MS":             &cfg.RequestDelay,
		"TIMEOUT_MS":           &cfg.Timeout,
		"RETRY_BACKOFF_MS":     &cfg.RetryBackoff,
		"RETRY_BACKOFF_MAX_MS": &cfg.RetryBackoffMax,
	}
	for key, dst := range durations {
		value, ok, err := EnvMillis(EnvPrefix + key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := EnvInt(EnvPrefix + "MIN_SALE_PRICE"); err != nil {
		return err
	} else if ok {
		cfg.MinSalePrice = int64(value)
	}
	if value, ok, err := EnvBool(EnvPrefix + "SMTP_USE_TLS"); err != nil {
		return err
	} else if ok {
		cfg.Mail.UseTLS = value
	}
	if value, ok, err := EnvBool(EnvPrefix + "VERBOSE"); err != nil {
		return err
	} else if ok {
		cfg.Verbose = value
	}

	lists := map[string]*[]string{
		"DENIED_INSTRUMENTS":    &cfg.DeniedInstruments,
		"RESIDENTIAL_CODES":     &cfg.ResidentialCodes,
		"RESIDENTIAL_LAND_USES": &cfg.ResidentialLandUses,
		"REPORT_TO":             &cfg.Mail.To,
	}
	for key, dst := range lists {
		if value, ok := EnvList(EnvPrefix + key); ok {
			*dst = value
		}
	}

	return nil
}
