package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	OutputDir string `toml:"output_dir"`
}

// Platform contains configuration for the external social platform account.
type Platform struct {
	Username           string `toml:"username"`
	AccountHandle      string `toml:"account_handle"`
	BaseURL            string `toml:"base_url"`
	SessionFile        string `toml:"session_file"`
	DeviceProfile      string `toml:"device_profile"`
	LoginDeviceProfile string `toml:"login_device_profile"`
	RequestTimeout     int    `toml:"request_timeout"`
	ChallengeTTL       int    `toml:"challenge_ttl"`
}

// Render contains configuration for story card generation.
type Render struct {
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	FontPath       string `toml:"font_path"`
	BrandText      string `toml:"brand_text"`
	WkhtmlBinary   string `toml:"wkhtmltoimage_binary"`
	ChromiumBinary string `toml:"chromium_binary"`
	RenderTimeout  int    `toml:"render_timeout"`
	MaxDimension   int    `toml:"max_dimension"`
}

// Moderation contains the policy for inconclusive moderation outcomes.
type Moderation struct {
	// OnInconclusive decides where a message lands when moderation cannot
	// reach a decision: "review", "approve", or "hold".
	OnInconclusive string `toml:"on_inconclusive"`
}

// Publisher contains retry tuning for platform uploads.
type Publisher struct {
	MaxAttempts         int `toml:"max_attempts"`
	BackoffInitialSecs  int `toml:"backoff_initial_seconds"`
	BackoffMaxSecs      int `toml:"backoff_max_seconds"`
	StorageRetryCount   int `toml:"storage_retry_count"`
	StorageRetryDelayMS int `toml:"storage_retry_delay_ms"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	PostsPerHour       int `toml:"posts_per_hour"`
}

// Daily contains configuration for the daily compilation post.
type Daily struct {
	Enabled     bool   `toml:"enabled"`
	PostTime    string `toml:"post_time"`
	MaxMessages int    `toml:"max_messages"`
	Caption     string `toml:"caption"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Publishes      bool   `toml:"publishes"`
	Batches        bool   `toml:"batches"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Secrets holds credentials sourced from the environment, never from TOML.
type Secrets struct {
	Password         string
	TwoFactorSeed    string
	VerificationCode string
}

// Config encapsulates all configuration values for spotd.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and rendered-image directories
//   - Platform: external platform account and session persistence
//   - Render: card dimensions, fonts, and render backend binaries
//   - Moderation: inconclusive-outcome policy
//   - Publisher: upload retry and storage-write retry tuning
//   - Workflow: daemon polling intervals and hourly post budget
//   - Daily: daily compilation scheduling
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Platform      Platform      `toml:"platform"`
	Render        Render        `toml:"render"`
	Moderation    Moderation    `toml:"moderation"`
	Publisher     Publisher     `toml:"publisher"`
	Workflow      Workflow      `toml:"workflow"`
	Daily         Daily         `toml:"daily"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`

	Secrets Secrets `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/spotd/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized, and secrets pulled from the
// environment.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Secrets = secretsFromEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func secretsFromEnv() Secrets {
	return Secrets{
		Password:         os.Getenv("SPOTD_PLATFORM_PASSWORD"),
		TwoFactorSeed:    os.Getenv("SPOTD_TWO_FACTOR_SEED"),
		VerificationCode: strings.TrimSpace(os.Getenv("SPOTD_VERIFICATION_CODE")),
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("spotd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.OutputDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Platform.SessionFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
