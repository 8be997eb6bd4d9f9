// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for procore-go. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
// Keys are flat at the top level of the file; the Go structs group them by
// concern through embedding.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	AuthConfig
	APIConfig
	DownloadConfig
	LoggingConfig
	NetworkConfig
	HistoryConfig
}

// AuthConfig holds the OAuth2 application registration and callback settings.
type AuthConfig struct {
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RedirectURI     string `toml:"redirect_uri"`
	AuthorizeURL    string `toml:"authorize_url"`
	TokenURL        string `toml:"token_url"`
	CallbackTimeout string `toml:"callback_timeout"`
	OpenBrowser     bool   `toml:"open_browser"`
}

// APIConfig controls the REST endpoint, paging, and retry budgets.
type APIConfig struct {
	APIBaseURL          string `toml:"api_base_url"`
	PageSize            int    `toml:"page_size"`
	RateLimitWait       string `toml:"rate_limit_wait"`
	MaxRateLimitRetries int    `toml:"max_rate_limit_retries"`
	MaxServerRetries    int    `toml:"max_server_retries"`
	MaxBackoff          string `toml:"max_backoff"`
}

// DownloadConfig controls where and how the mirrored tree is written.
type DownloadConfig struct {
	OutputDir       string `toml:"output_dir"`
	DirPermissions  string `toml:"dir_permissions"`
	FilePermissions string `toml:"file_permissions"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// HistoryConfig controls the local run-history database. The database lives
// outside the output tree so the mirror carries no sidecar files.
type HistoryConfig struct {
	HistoryEnabled bool   `toml:"history_enabled"`
	HistoryDB      string `toml:"history_db"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath  string  // --config flag (empty = use default)
	OutputDir   *string // --output flag
	OpenBrowser *bool   // --no-browser flag (inverted)
}
