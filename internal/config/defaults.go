package config

// Default values for configuration options. These represent "layer 0" of
// the override chain and work without any config file.
const (
	defaultRedirectURI         = "http://127.0.0.1:8765/callback"
	defaultAuthorizeURL        = "https://login.procore.com/oauth/authorize"
	defaultTokenURL            = "https://login.procore.com/oauth/token"
	defaultCallbackTimeout     = "5m"
	defaultAPIBaseURL          = "https://api.procore.com/rest/v1.0"
	defaultPageSize            = 100
	defaultRateLimitWait       = "60s"
	defaultMaxRateLimitRetries = 10
	defaultMaxServerRetries    = 4
	defaultMaxBackoff          = "30s"
	defaultOutputDir           = "downloads"
	defaultDirPermissions      = "0755"
	defaultFilePermissions     = "0644"
	defaultLogLevel            = "info"
	defaultLogFormat           = "auto"
	defaultRequestTimeout      = "0"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding (so unset fields keep their
// defaults) and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		AuthConfig:     defaultAuthConfig(),
		APIConfig:      defaultAPIConfig(),
		DownloadConfig: defaultDownloadConfig(),
		LoggingConfig:  defaultLoggingConfig(),
		NetworkConfig:  defaultNetworkConfig(),
		HistoryConfig:  HistoryConfig{HistoryEnabled: true},
	}
}

func defaultAuthConfig() AuthConfig {
	return AuthConfig{
		RedirectURI:     defaultRedirectURI,
		AuthorizeURL:    defaultAuthorizeURL,
		TokenURL:        defaultTokenURL,
		CallbackTimeout: defaultCallbackTimeout,
		OpenBrowser:     true,
	}
}

func defaultAPIConfig() APIConfig {
	return APIConfig{
		APIBaseURL:          defaultAPIBaseURL,
		PageSize:            defaultPageSize,
		RateLimitWait:       defaultRateLimitWait,
		MaxRateLimitRetries: defaultMaxRateLimitRetries,
		MaxServerRetries:    defaultMaxServerRetries,
		MaxBackoff:          defaultMaxBackoff,
	}
}

func defaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		OutputDir:       defaultOutputDir,
		DirPermissions:  defaultDirPermissions,
		FilePermissions: defaultFilePermissions,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		RequestTimeout: defaultRequestTimeout,
	}
}
