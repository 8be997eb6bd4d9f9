package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/procore-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags are the persistent flags shared by every subcommand.
type CLIFlags struct {
	ConfigPath string
	OutputDir  string
	NoBrowser  bool
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext carries everything a subcommand needs after the root pre-run:
// the parsed flags, the resolved configuration and the configured logger.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Config
	Logger *slog.Logger
	Stdout io.Writer
}

type cliContextKey struct{}

// cliContextFrom returns the CLIContext stored by the root pre-run, or nil.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

// mustCLIContext is cliContextFrom for commands that cannot run without one.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not initialized; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:   "procore-go",
		Short: "Procore document downloader",
		Long: `Mirror the document tree of Procore projects onto local disk.

Authenticates through the browser (OAuth2 authorization code), walks every
folder of the selected projects and writes the latest version of each file
under <output>/<project name>/, keeping the remote folder structure.`,
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd, flags)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVarP(&flags.OutputDir, "output", "o", "", "output directory (overrides output_dir)")
	pf.BoolVar(&flags.NoBrowser, "no-browser", false, "print the authorization URL without opening a browser")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newCompaniesCmd())
	cmd.AddCommand(newProjectsCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain (defaults, file, .env + environment, flags) and builds the
// logger every subcommand uses.
func loadCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	boot := bootstrapLogger(flags)

	if err := config.LoadDotEnv(config.DotEnvFile, boot); err != nil {
		return nil, err
	}

	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	// Only pass flags the user explicitly set so config values survive.
	if cmd.Flags().Changed("output") {
		cli.OutputDir = &flags.OutputDir
	}

	if cmd.Flags().Changed("no-browser") {
		open := !flags.NoBrowser
		cli.OpenBrowser = &open
	}

	cfg, err := config.Resolve(config.ReadEnvOverrides(boot), cli, boot)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &CLIContext{
		Flags:  flags,
		Cfg:    cfg,
		Logger: buildLogger(cfg, flags, os.Stderr),
		Stdout: cmd.OutOrStdout(),
	}, nil
}

// bootstrapLogger is used before the config is loaded. Only the CLI flags
// can influence it; the default shows warnings and errors.
func bootstrapLogger(flags CLIFlags) *slog.Logger {
	level := slog.LevelWarn

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildLogger creates the logger for a command. The config log level is the
// baseline; --verbose and --quiet override it because CLI flags always win.
func buildLogger(cfg *config.Config, flags CLIFlags, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	format := "auto"

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.LogFormat
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(format, w) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// useJSONLogs resolves log_format. "auto" means text for a terminal and
// JSON for anything else (files, pipes, log collectors).
func useJSONLogs(format string, w io.Writer) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return true
	}

	fd := f.Fd()

	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// newHTTPClient returns the HTTP client for API and download traffic.
// request_timeout 0 leaves the client without a deadline.
func newHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.RequestTimeoutDuration()}
}
