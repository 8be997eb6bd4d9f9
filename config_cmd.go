package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/procore-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			_, err := cmd.OutOrStdout().Write([]byte(configPathFor(cc) + "\n"))

			return err
		},
	}
}

func configPathFor(cc *CLIContext) string {
	return config.ConfigPath(config.ReadEnvOverrides(cc.Logger), config.CLIOverrides{ConfigPath: cc.Flags.ConfigPath})
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		// The secret is reported as set or unset, never printed.
		shown := *cc.Cfg
		if shown.ClientSecret != "" {
			shown.ClientSecret = "(set)"
		}

		return printJSON(cc.Stdout, shown)
	}

	path := configPathFor(cc)
	if _, err := os.Stat(path); err != nil {
		path = "" // defaults only
	}

	return config.RenderEffective(cc.Cfg, path, cc.Stdout)
}
