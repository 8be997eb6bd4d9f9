package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a debug-level logger so config debug output appears in
// test output.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	tomlContent := `
client_id = "abc"
client_secret = "shh"
redirect_uri = "http://localhost:9000/cb"
authorize_url = "https://sandbox.procore.com/oauth/authorize"
token_url = "https://sandbox.procore.com/oauth/token"
callback_timeout = "2m"
open_browser = false

api_base_url = "https://sandbox.procore.com/rest/v1.0"
page_size = 250
rate_limit_wait = "30s"
max_rate_limit_retries = 5
max_server_retries = 2
max_backoff = "10s"

output_dir = "/srv/procore"
dir_permissions = "0700"
file_permissions = "0600"

log_level = "debug"
log_format = "json"

request_timeout = "10m"
user_agent = "acme-mirror/1.0"

history_enabled = false
history_db = "/var/lib/procore-go/history.db"
`
	path := writeTestConfig(t, tomlContent)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.ClientID)
	assert.Equal(t, "shh", cfg.ClientSecret)
	assert.Equal(t, "http://localhost:9000/cb", cfg.RedirectURI)
	assert.Equal(t, "https://sandbox.procore.com/oauth/authorize", cfg.AuthorizeURL)
	assert.Equal(t, "2m", cfg.CallbackTimeout)
	assert.False(t, cfg.OpenBrowser)
	assert.Equal(t, "https://sandbox.procore.com/rest/v1.0", cfg.APIBaseURL)
	assert.Equal(t, 250, cfg.PageSize)
	assert.Equal(t, 5, cfg.MaxRateLimitRetries)
	assert.Equal(t, 2, cfg.MaxServerRetries)
	assert.Equal(t, "/srv/procore", cfg.OutputDir)
	assert.Equal(t, "0700", cfg.DirPermissions)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "10m", cfg.RequestTimeout)
	assert.Equal(t, "acme-mirror/1.0", cfg.UserAgent)
	assert.False(t, cfg.HistoryEnabled)
	assert.Equal(t, "/var/lib/procore-go/history.db", cfg.HistoryDB)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, `client_id = "abc"`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.ClientID)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, "downloads", cfg.OutputDir)
	assert.True(t, cfg.OpenBrowser)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, `client_id = `)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeTestConfig(t, "page_size = 0\nlog_level = \"loud\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_size")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigPath_Precedence(t *testing.T) {
	assert.Equal(t, DefaultConfigPath(), ConfigPath(EnvOverrides{}, CLIOverrides{}))
	assert.Equal(t, "/env.toml", ConfigPath(EnvOverrides{ConfigPath: "/env.toml"}, CLIOverrides{}))
	assert.Equal(t, "/cli.toml",
		ConfigPath(EnvOverrides{ConfigPath: "/env.toml"}, CLIOverrides{ConfigPath: "/cli.toml"}))
}

func TestResolve_OverrideChain(t *testing.T) {
	path := writeTestConfig(t, `
client_id = "file-id"
client_secret = "file-secret"
output_dir = "/from/file"
`)

	env := EnvOverrides{
		ConfigPath:   path,
		ClientSecret: "env-secret",
		OutputDir:    "/from/env",
	}

	cliOut := "/from/cli"
	noBrowser := false

	cfg, err := Resolve(env, CLIOverrides{OutputDir: &cliOut, OpenBrowser: &noBrowser}, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "file-id", cfg.ClientID)
	assert.Equal(t, "env-secret", cfg.ClientSecret)
	assert.Equal(t, "/from/cli", cfg.OutputDir)
	assert.False(t, cfg.OpenBrowser)
	assert.NotEmpty(t, cfg.HistoryDB)
}

func TestResolve_EnvOutputDirWithoutCLI(t *testing.T) {
	env := EnvOverrides{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		OutputDir:  "/from/env",
	}

	cfg, err := Resolve(env, CLIOverrides{}, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.OutputDir)
}

func TestResolve_EmptyOutputDirRejected(t *testing.T) {
	empty := ""

	_, err := Resolve(EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")},
		CLIOverrides{OutputDir: &empty}, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_dir")
}
