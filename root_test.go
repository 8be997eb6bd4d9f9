package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/procore-go/internal/config"
	"github.com/tonimelisma/procore-go/internal/mirror"
)

// isolateEnv clears every variable the config layer reads so the developer's
// own environment cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{config.EnvConfig, config.EnvOutputDir, config.EnvClientID, config.EnvClientSecret} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// executeRoot runs the CLI with args and returns what it wrote to stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestBootstrapLogger(t *testing.T) {
	ctx := context.Background()

	logger := bootstrapLogger(CLIFlags{})
	assert.True(t, logger.Handler().Enabled(ctx, slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(ctx, slog.LevelInfo))

	logger = bootstrapLogger(CLIFlags{Verbose: true})
	assert.True(t, logger.Handler().Enabled(ctx, slog.LevelDebug))

	logger = bootstrapLogger(CLIFlags{Quiet: true})
	assert.False(t, logger.Handler().Enabled(ctx, slog.LevelWarn))
}

func TestBuildLogger_Levels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfgLevel string
		flags    CLIFlags
		enabled  slog.Level
		disabled slog.Level
	}{
		{"config info", "info", CLIFlags{}, slog.LevelInfo, slog.LevelDebug},
		{"config debug", "debug", CLIFlags{}, slog.LevelDebug, slog.LevelDebug - 4},
		{"config warn", "warn", CLIFlags{}, slog.LevelWarn, slog.LevelInfo},
		{"config error", "error", CLIFlags{}, slog.LevelError, slog.LevelWarn},
		{"verbose beats config", "error", CLIFlags{Verbose: true}, slog.LevelDebug, slog.LevelDebug - 4},
		{"quiet beats config", "debug", CLIFlags{Quiet: true}, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LogLevel = tt.cfgLevel

			logger := buildLogger(cfg, tt.flags, &bytes.Buffer{})
			assert.True(t, logger.Handler().Enabled(ctx, tt.enabled))
			assert.False(t, logger.Handler().Enabled(ctx, tt.disabled))
		})
	}
}

func TestBuildLogger_NilConfig(t *testing.T) {
	logger := buildLogger(nil, CLIFlags{}, &bytes.Buffer{})
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBuildLogger_Formats(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{"json", true},
		{"text", false},
		{"auto", true}, // a buffer is not a terminal
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LogFormat = tt.format

			var buf bytes.Buffer
			buildLogger(cfg, CLIFlags{}, &buf).Info("hello", slog.String("k", "v"))

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"hello"`)
			} else {
				assert.Contains(t, buf.String(), "msg=hello")
			}
		})
	}
}

func TestUseJSONLogs_RegularFileIsNotTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, useJSONLogs("auto", f))
	assert.False(t, useJSONLogs("text", f))
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Zero(t, newHTTPClient(cfg).Timeout)

	cfg.RequestTimeout = "90s"
	assert.Equal(t, "1m30s", newHTTPClient(cfg).Timeout.String())
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"companies", "projects", "download", "history", "config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	sub, _, err := cmd.Find([]string{"config", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", sub.Name())
}

func TestExitCode(t *testing.T) {
	partial := fmt.Errorf("%w: 1 of 3 failed", mirror.ErrPartialFailure)

	assert.Equal(t, exitPartialFailure, exitCode(partial))
	assert.Equal(t, exitFailure, exitCode(errors.New("auth: denied")))
	assert.Equal(t, exitFailure, exitCode(fmt.Errorf("listing: %w", errors.New("boom"))))
}

func TestConfigShow_AppliesOverrideChain(t *testing.T) {
	isolateEnv(t)

	path := writeConfigFile(t, `
client_id = "file-id"
client_secret = "file-secret"
output_dir = "/from/file"
log_level = "warn"
`)
	t.Setenv(config.EnvClientID, "env-id")

	out, err := executeRoot(t, "--config", path, "--output", "/from/cli", "--no-browser", "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, path)
	assert.Contains(t, out, `"env-id"`)
	assert.Contains(t, out, `"/from/cli"`)
	assert.Contains(t, out, "open_browser     = false")
	assert.Contains(t, out, "client_secret    = (set)")
	assert.NotContains(t, out, "file-secret")
}

func TestConfigShow_JSONRedactsSecret(t *testing.T) {
	isolateEnv(t)

	path := writeConfigFile(t, "client_secret = \"hush\"\n")

	out, err := executeRoot(t, "--config", path, "--json", "config", "show")
	require.NoError(t, err)

	assert.NotContains(t, out, "hush")
	assert.Contains(t, out, `"ClientSecret": "(set)"`)
}

func TestConfigShow_MissingFileUsesDefaults(t *testing.T) {
	isolateEnv(t)

	out, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "absent.toml"), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "(file: (none))")
}

func TestConfigPath_PrintsFlagValue(t *testing.T) {
	isolateEnv(t)

	out, err := executeRoot(t, "--config", "/etc/procore-go.toml", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, "/etc/procore-go.toml\n", out)
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	isolateEnv(t)

	path := writeConfigFile(t, "page_sise = 10\n")

	_, err := executeRoot(t, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), "page_size")
}
