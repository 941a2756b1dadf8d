package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	cfgPath := writeTestConfig(t)
	target := filepath.Join(t.TempDir(), "sample.toml")

	out, err := runCLI(t, cfgPath, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config at %s: %v", target, err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	cfgPath := writeTestConfig(t)
	t.Setenv("SPOTD_PLATFORM_PASSWORD", "hunter2")

	out, err := runCLI(t, cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "spotted.test")
	requireContains(t, out, "(set)")
	if strings.Contains(out, "hunter2") {
		t.Fatal("config show leaked the password")
	}
}
