package config

const (
	defaultDataDir             = "~/.local/share/spotd"
	defaultLogDir              = "~/.local/share/spotd/logs"
	defaultOutputDir           = "~/.local/share/spotd/cards"
	defaultSessionFile         = "~/.local/share/spotd/session.json"
	defaultPlatformBaseURL     = "https://i.instagram.com/api/v1"
	defaultAccountHandle       = "@spottedatbz"
	defaultBrandText           = "SPOTTED"
	defaultDeviceProfile       = "Instagram 27.0.0.7.97 Android (24/7.0; 380dpi; 1080x1920; OnePlus; ONEPLUS A3010; OnePlus3T; qcom; en_US)"
	defaultLoginDeviceProfile  = "Instagram 319.0.0.27.95 Android (24/7.0; 380dpi; 1080x1920; samsung; SM-G998B; o1s; en_US)"
	defaultPlatformTimeout     = 30
	defaultChallengeTTLSecs    = 600
	defaultCardWidth           = 1080
	defaultCardHeight          = 1920
	defaultRenderTimeout       = 60
	defaultMaxDimension        = 1920
	defaultWkhtmlBinary        = "wkhtmltoimage"
	defaultChromiumBinary      = "chromium"
	defaultOnInconclusive      = "review"
	defaultMaxAttempts         = 3
	defaultBackoffInitialSecs  = 5
	defaultBackoffMaxSecs      = 40
	defaultStorageRetryCount   = 3
	defaultStorageRetryDelayMS = 250
	defaultPollInterval        = 60
	defaultErrorRetryInterval  = 30
	defaultPostsPerHour        = 10
	defaultDailyPostTime       = "20:00"
	defaultDailyMaxMessages    = 20
	defaultDailyCaption        = "Spotted of the day {date}"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
		},
		Platform: Platform{
			AccountHandle:      defaultAccountHandle,
			BaseURL:            defaultPlatformBaseURL,
			SessionFile:        defaultSessionFile,
			DeviceProfile:      defaultDeviceProfile,
			LoginDeviceProfile: defaultLoginDeviceProfile,
			RequestTimeout:     defaultPlatformTimeout,
			ChallengeTTL:       defaultChallengeTTLSecs,
		},
		Render: Render{
			Width:          defaultCardWidth,
			Height:         defaultCardHeight,
			BrandText:      defaultBrandText,
			WkhtmlBinary:   defaultWkhtmlBinary,
			ChromiumBinary: defaultChromiumBinary,
			RenderTimeout:  defaultRenderTimeout,
			MaxDimension:   defaultMaxDimension,
		},
		Moderation: Moderation{
			OnInconclusive: defaultOnInconclusive,
		},
		Publisher: Publisher{
			MaxAttempts:         defaultMaxAttempts,
			BackoffInitialSecs:  defaultBackoffInitialSecs,
			BackoffMaxSecs:      defaultBackoffMaxSecs,
			StorageRetryCount:   defaultStorageRetryCount,
			StorageRetryDelayMS: defaultStorageRetryDelayMS,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			PostsPerHour:       defaultPostsPerHour,
		},
		Daily: Daily{
			Enabled:     false,
			PostTime:    defaultDailyPostTime,
			MaxMessages: defaultDailyMaxMessages,
			Caption:     defaultDailyCaption,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Publishes:      true,
			Batches:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
