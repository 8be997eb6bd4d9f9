package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all override layers
// have been applied. The client secret is never printed.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", orNone(path))

	renderAuthSection(ew, &cfg.AuthConfig)
	renderAPISection(ew, &cfg.APIConfig)
	renderDownloadSection(ew, &cfg.DownloadConfig)
	renderLoggingSection(ew, &cfg.LoggingConfig)
	renderNetworkSection(ew, &cfg.NetworkConfig)
	renderHistorySection(ew, &cfg.HistoryConfig)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}

	return s
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	secret := "(unset)"
	if a.ClientSecret != "" {
		secret = "(set)"
	}

	ew.printf("# auth\n")
	ew.printf("client_id        = %q\n", a.ClientID)
	ew.printf("client_secret    = %s\n", secret)
	ew.printf("redirect_uri     = %q\n", a.RedirectURI)
	ew.printf("authorize_url    = %q\n", a.AuthorizeURL)
	ew.printf("token_url        = %q\n", a.TokenURL)
	ew.printf("callback_timeout = %q\n", a.CallbackTimeout)
	ew.printf("open_browser     = %t\n", a.OpenBrowser)
	ew.printf("\n")
}

func renderAPISection(ew *errWriter, a *APIConfig) {
	ew.printf("# api\n")
	ew.printf("api_base_url           = %q\n", a.APIBaseURL)
	ew.printf("page_size              = %d\n", a.PageSize)
	ew.printf("rate_limit_wait        = %q\n", a.RateLimitWait)
	ew.printf("max_rate_limit_retries = %d\n", a.MaxRateLimitRetries)
	ew.printf("max_server_retries     = %d\n", a.MaxServerRetries)
	ew.printf("max_backoff            = %q\n", a.MaxBackoff)
	ew.printf("\n")
}

func renderDownloadSection(ew *errWriter, d *DownloadConfig) {
	ew.printf("# download\n")
	ew.printf("output_dir       = %q\n", d.OutputDir)
	ew.printf("dir_permissions  = %q\n", d.DirPermissions)
	ew.printf("file_permissions = %q\n", d.FilePermissions)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("# logging\n")
	ew.printf("log_level  = %q\n", l.LogLevel)
	ew.printf("log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("# network\n")
	ew.printf("request_timeout = %q\n", n.RequestTimeout)

	if n.UserAgent != "" {
		ew.printf("user_agent      = %q\n", n.UserAgent)
	}

	ew.printf("\n")
}

func renderHistorySection(ew *errWriter, h *HistoryConfig) {
	ew.printf("# history\n")
	ew.printf("history_enabled = %t\n", h.HistoryEnabled)
	ew.printf("history_db      = %q\n", h.HistoryDB)
}
