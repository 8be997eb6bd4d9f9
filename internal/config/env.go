package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for overrides.
const (
	EnvConfig       = "PROCORE_GO_CONFIG"
	EnvOutputDir    = "PROCORE_GO_OUTPUT_DIR"
	EnvClientID     = "PROCORE_CLIENT_ID"
	EnvClientSecret = "PROCORE_CLIENT_SECRET"
)

// DotEnvFile is read from the working directory before the environment is
// consulted.
const DotEnvFile = ".env"

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // PROCORE_GO_CONFIG: override config file path
	OutputDir    string // PROCORE_GO_OUTPUT_DIR: output root override
	ClientID     string // PROCORE_CLIENT_ID
	ClientSecret string // PROCORE_CLIENT_SECRET
}

// LoadDotEnv populates the process environment from path if it exists.
// Variables already set in the environment win over the file. A missing
// file is not an error.
func LoadDotEnv(path string, logger *slog.Logger) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	logger.Debug("loaded environment file", "path", path)

	return nil
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides(logger *slog.Logger) EnvOverrides {
	o := EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		OutputDir:    os.Getenv(EnvOutputDir),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}

	logger.Debug("environment overrides",
		"config_path", o.ConfigPath,
		"output_dir", o.OutputDir,
		"client_id_set", o.ClientID != "",
		"client_secret_set", o.ClientSecret != "",
	)

	return o
}
