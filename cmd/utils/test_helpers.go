package utils

import (
	"os"
	"strings"
	"testing"
)

// ClearTestEnvironment blanks every environment variable for the duration of
// a test, so config options resolve from flags and defaults instead of
// whatever the host shell exports. t.Setenv restores the originals.
func ClearTestEnvironment(t *testing.T) {
	t.Helper()

	for _, env := range os.Environ() {
		name, _, _ := strings.Cut(env, "=")
		t.Setenv(name, "")
	}
}
