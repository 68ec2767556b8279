package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_envFileFromArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "no flag present",
			args:     []string{"app", "watcher"},
			expected: "",
		},
		{
			name:     "flag with space separator",
			args:     []string{"app", "--env-file", "/path/to/.env", "watcher"},
			expected: "/path/to/.env",
		},
		{
			name:     "flag with equals separator",
			args:     []string{"app", "--env-file=/path/to/.env", "watcher"},
			expected: "/path/to/.env",
		},
		{
			name:     "flag after subcommand",
			args:     []string{"app", "serve", "--env-file", "/path/to/.env"},
			expected: "/path/to/.env",
		},
		{
			name:     "flag with missing value at end",
			args:     []string{"app", "serve", "--env-file"},
			expected: "",
		},
		{
			name:     "similar flag name ignored",
			args:     []string{"app", "--env-file-path", "/path/to/.env"},
			expected: "",
		},
		{
			name:     "empty value with equals",
			args:     []string{"app", "--env-file="},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, envFileFromArgs(tt.args))
		})
	}
}

func Test_explicitEnvFilePath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     []string
		envVar   string
		expected string
	}{
		{
			name:     "nothing set returns empty",
			args:     []string{"app"},
			envVar:   "",
			expected: "",
		},
		{
			name:     "flag takes precedence over env var",
			args:     []string{"app", "--env-file", "/flag/path/.env"},
			envVar:   "/env/path/.env",
			expected: "/flag/path/.env",
		},
		{
			name:     "env var used when no flag",
			args:     []string{"app"},
			envVar:   "/env/path/.env",
			expected: "/env/path/.env",
		},
		{
			name:     "relative flag path converted to absolute",
			args:     []string{"app", "--env-file", "config/.env"},
			envVar:   "",
			expected: filepath.Join(cwd, "config/.env"),
		},
		{
			name:     "relative env var path converted to absolute",
			args:     []string{"app"},
			envVar:   "./config/.env",
			expected: filepath.Join(cwd, "config/.env"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalArgs := os.Args
			t.Cleanup(func() { os.Args = originalArgs })
			os.Args = tt.args
			t.Setenv(envFileEnvVar, tt.envVar)

			assert.Equal(t, tt.expected, explicitEnvFilePath())
		})
	}
}

func Test_LoadEnvFile(t *testing.T) {
	writeEnvFile := func(t *testing.T, name, contents string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
		return path
	}

	setArgs := func(t *testing.T, args ...string) {
		t.Helper()
		originalArgs := os.Args
		t.Cleanup(func() { os.Args = originalArgs })
		os.Args = args
	}

	// godotenv never overrides variables that are already set, so each subtest
	// unsets its marker variable afterwards instead of pre-seeding it.
	unsetAfter := func(t *testing.T, name string) {
		t.Helper()
		t.Cleanup(func() { require.NoError(t, os.Unsetenv(name)) })
	}

	t.Run("uses flag path when provided", func(t *testing.T) {
		envPath := writeEnvFile(t, "custom.env", "FLAG_VAR=from_flag\n")
		setArgs(t, "app", "--env-file", envPath)
		unsetAfter(t, "FLAG_VAR")

		err := LoadEnvFile()

		assert.NoError(t, err)
		assert.Equal(t, "from_flag", os.Getenv("FLAG_VAR"))
	})

	t.Run("uses env var path when no flag", func(t *testing.T) {
		envPath := writeEnvFile(t, "envvar.env", "ENVVAR_VAR=from_envvar\n")
		setArgs(t, "app")
		t.Setenv(envFileEnvVar, envPath)
		unsetAfter(t, "ENVVAR_VAR")

		err := LoadEnvFile()

		assert.NoError(t, err)
		assert.Equal(t, "from_envvar", os.Getenv("ENVVAR_VAR"))
	})

	t.Run("flag takes precedence over env var", func(t *testing.T) {
		flagEnvPath := writeEnvFile(t, "flag.env", "PRECEDENCE_TEST=from_flag\n")
		envVarEnvPath := writeEnvFile(t, "envvar.env", "PRECEDENCE_TEST=from_envvar\n")
		setArgs(t, "app", "--env-file", flagEnvPath)
		t.Setenv(envFileEnvVar, envVarEnvPath)
		unsetAfter(t, "PRECEDENCE_TEST")

		err := LoadEnvFile()

		assert.NoError(t, err)
		assert.Equal(t, "from_flag", os.Getenv("PRECEDENCE_TEST"))
	})

	t.Run("falls back to .env in working directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("DEFAULT_FALLBACK=from_default\n"), 0o644))
		setArgs(t, "app")
		t.Setenv(envFileEnvVar, "")
		unsetAfter(t, "DEFAULT_FALLBACK")

		originalWd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(tmpDir))
		t.Cleanup(func() { require.NoError(t, os.Chdir(originalWd)) })

		err = LoadEnvFile()

		assert.NoError(t, err)
		assert.Equal(t, "from_default", os.Getenv("DEFAULT_FALLBACK"))
	})

	t.Run("succeeds when no .env file exists", func(t *testing.T) {
		setArgs(t, "app")
		t.Setenv(envFileEnvVar, "")

		originalWd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		t.Cleanup(func() { require.NoError(t, os.Chdir(originalWd)) })

		err = LoadEnvFile()

		assert.NoError(t, err)
	})

	t.Run("returns error for explicit nonexistent path", func(t *testing.T) {
		setArgs(t, "app", "--env-file", "/nonexistent/.env")

		err := LoadEnvFile()

		assert.ErrorContains(t, err, "loading env file /nonexistent/.env")
	})
}
