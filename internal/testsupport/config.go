// Package testsupport provides shared scaffolding for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"spotd/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "cards")
	cfg.Platform.Username = "spotted.test"
	cfg.Platform.SessionFile = filepath.Join(base, "session", "session.json")
	cfg.Secrets.Password = "test-password"
	// Storage retries stay but without real sleeps between them.
	cfg.Publisher.StorageRetryDelayMS = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithInconclusivePolicy overrides the moderation inconclusive policy.
func WithInconclusivePolicy(policy string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Moderation.OnInconclusive = policy
	}
}
