package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Validation range constants.
const (
	minPageSize         = 1
	maxPageSize         = 1000
	maxRateLimitRetries = 100
	maxServerRetries    = 20
	minCallbackTimeout  = 10 * time.Second
	maxCallbackTimeout  = time.Hour
	octalBase           = 8
	minOctalDigits      = 3
	maxOctalDigits      = 4
	maxOctalValue       = 0o777
)

// ErrMissingClientID is returned by RequireCredentials when no OAuth2 client
// ID was configured anywhere.
var ErrMissingClientID = errors.New(
	"client_id is not set: add it to the config file or set " + EnvClientID)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.AuthConfig)...)
	errs = append(errs, validateAPI(&cfg.APIConfig)...)
	errs = append(errs, validateDownload(&cfg.DownloadConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints on the final merged result, after
// environment and CLI overrides have been applied.
func ValidateResolved(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir: must not be empty"))
	}

	if cfg.HistoryEnabled && cfg.HistoryDB == "" {
		errs = append(errs, errors.New("history_db: could not determine a location, set it explicitly"))
	}

	return errors.Join(errs...)
}

// RequireCredentials reports whether enough is configured to start the
// authorization flow.
func (c *Config) RequireCredentials() error {
	if c.ClientID == "" {
		return ErrMissingClientID
	}

	return nil
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	errs = append(errs, validateRedirectURI(a.RedirectURI)...)
	errs = append(errs, validateHTTPURL("authorize_url", a.AuthorizeURL)...)
	errs = append(errs, validateHTTPURL("token_url", a.TokenURL)...)
	errs = append(errs, validateDurationRange("callback_timeout", a.CallbackTimeout,
		minCallbackTimeout, maxCallbackTimeout)...)

	return errs
}

func validateRedirectURI(raw string) []error {
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("redirect_uri: invalid URL %q: %w", raw, err)}
	}

	host := u.Hostname()
	if u.Scheme != "http" || (host != "localhost" && host != "127.0.0.1") {
		return []error{fmt.Errorf("redirect_uri: must be http://127.0.0.1:<port>/<path>, got %q", raw)}
	}

	if _, err := strconv.Atoi(u.Port()); err != nil {
		return []error{fmt.Errorf("redirect_uri: must include a port, got %q", raw)}
	}

	return nil
}

func validateHTTPURL(field, raw string) []error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return []error{fmt.Errorf("%s: must be an absolute http(s) URL, got %q", field, raw)}
	}

	return nil
}

func validateAPI(a *APIConfig) []error {
	var errs []error

	errs = append(errs, validateHTTPURL("api_base_url", a.APIBaseURL)...)

	if a.PageSize < minPageSize || a.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("page_size: must be between %d and %d, got %d",
			minPageSize, maxPageSize, a.PageSize))
	}

	if a.MaxRateLimitRetries < 0 || a.MaxRateLimitRetries > maxRateLimitRetries {
		errs = append(errs, fmt.Errorf("max_rate_limit_retries: must be between 0 and %d, got %d",
			maxRateLimitRetries, a.MaxRateLimitRetries))
	}

	if a.MaxServerRetries < 0 || a.MaxServerRetries > maxServerRetries {
		errs = append(errs, fmt.Errorf("max_server_retries: must be between 0 and %d, got %d",
			maxServerRetries, a.MaxServerRetries))
	}

	errs = append(errs, validateDurationMin("rate_limit_wait", a.RateLimitWait, time.Second)...)
	errs = append(errs, validateDurationMin("max_backoff", a.MaxBackoff, time.Second)...)

	return errs
}

func validateDownload(d *DownloadConfig) []error {
	var errs []error

	errs = append(errs, validateOctalPermission("dir_permissions", d.DirPermissions)...)
	errs = append(errs, validateOctalPermission("file_permissions", d.FilePermissions)...)

	return errs
}

func validateOctalPermission(field, value string) []error {
	if value == "" {
		return []error{fmt.Errorf("%s: must not be empty", field)}
	}

	if len(value) < minOctalDigits || len(value) > maxOctalDigits {
		return []error{fmt.Errorf("%s: must be 3 or 4 octal digits, got %q", field, value)}
	}

	n, err := strconv.ParseInt(value, octalBase, 32)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid octal value %q", field, value)}
	}

	if n < 0 || n > maxOctalValue {
		return []error{fmt.Errorf("%s: octal value out of range %q", field, value)}
	}

	return nil
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateDurationRange(field, value string, minimum, maximum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	if d, _ := time.ParseDuration(value); d > maximum {
		return []error{fmt.Errorf("%s: must be <= %s, got %s", field, maximum, d)}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	return validateDurationNonNeg("request_timeout", n.RequestTimeout)
}

// The accessors below convert validated string fields to typed values. They
// are only meaningful after Validate has passed; parse failures fall back to
// the zero value.

// CallbackTimeoutDuration returns callback_timeout as a time.Duration.
func (c *Config) CallbackTimeoutDuration() time.Duration {
	return parseDurationOrZero(c.CallbackTimeout)
}

// RateLimitWaitDuration returns rate_limit_wait as a time.Duration.
func (c *Config) RateLimitWaitDuration() time.Duration {
	return parseDurationOrZero(c.RateLimitWait)
}

// MaxBackoffDuration returns max_backoff as a time.Duration.
func (c *Config) MaxBackoffDuration() time.Duration {
	return parseDurationOrZero(c.MaxBackoff)
}

// RequestTimeoutDuration returns request_timeout; zero means no limit.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return parseDurationOrZero(c.RequestTimeout)
}

// DirMode returns dir_permissions as a file mode.
func (c *Config) DirMode() fs.FileMode {
	return parseModeOrZero(c.DirPermissions)
}

// FileMode returns file_permissions as a file mode.
func (c *Config) FileMode() fs.FileMode {
	return parseModeOrZero(c.FilePermissions)
}

func parseDurationOrZero(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}

func parseModeOrZero(s string) fs.FileMode {
	n, err := strconv.ParseUint(s, octalBase, 32)
	if err != nil {
		return 0
	}

	return fs.FileMode(n)
}
