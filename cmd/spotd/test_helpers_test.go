package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig lays out a minimal config file with temp directories and
// returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(base, "data") + `"
log_dir = "` + filepath.Join(base, "logs") + `"
output_dir = "` + filepath.Join(base, "cards") + `"

[platform]
username = "spotted.test"
session_file = "` + filepath.Join(base, "session", "session.json") + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCLI executes the root command with the given arguments against the
// provided config file and returns captured stdout.
func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}
