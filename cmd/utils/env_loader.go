package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envFileFlag   = "--env-file"
	envFileEnvVar = "ENV_FILE"
)

// LoadEnvFile seeds the process environment from a dotenv file before cobra
// and viper parse anything. An explicit path comes from the --env-file flag
// or the ENV_FILE variable, in that order; otherwise a .env in the working
// directory is loaded when present.
func LoadEnvFile() error {
	if path := explicitEnvFilePath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env file: %w", err)
	}
	return nil
}

// explicitEnvFilePath resolves the env file path from the flag or the
// environment, normalized to an absolute path. Empty means no explicit file
// was requested.
func explicitEnvFilePath() string {
	path := envFileFromArgs(os.Args)
	if path == "" {
		path = os.Getenv(envFileEnvVar)
	}
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// envFileFromArgs scans raw arguments for --env-file ahead of flag parsing,
// accepting both "--env-file path" and "--env-file=path" forms.
func envFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == envFileFlag && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, envFileFlag+"=") {
			return strings.TrimPrefix(arg, envFileFlag+"=")
		}
	}
	return ""
}
