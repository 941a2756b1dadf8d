package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Platform.SessionFile, err = expandPath(c.Platform.SessionFile); err != nil {
		return err
	}
	if strings.TrimSpace(c.Render.FontPath) != "" {
		if c.Render.FontPath, err = expandPath(c.Render.FontPath); err != nil {
			return err
		}
	}

	c.Platform.Username = strings.TrimSpace(c.Platform.Username)
	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	c.Platform.AccountHandle = strings.TrimSpace(c.Platform.AccountHandle)
	c.Moderation.OnInconclusive = strings.ToLower(strings.TrimSpace(c.Moderation.OnInconclusive))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Platform.RequestTimeout <= 0 {
		c.Platform.RequestTimeout = defaultPlatformTimeout
	}
	if c.Platform.ChallengeTTL <= 0 {
		c.Platform.ChallengeTTL = defaultChallengeTTLSecs
	}
	if c.Render.RenderTimeout <= 0 {
		c.Render.RenderTimeout = defaultRenderTimeout
	}
	if c.Render.MaxDimension <= 0 {
		c.Render.MaxDimension = defaultMaxDimension
	}
	if c.Publisher.MaxAttempts <= 0 {
		c.Publisher.MaxAttempts = defaultMaxAttempts
	}
	if c.Publisher.BackoffInitialSecs <= 0 {
		c.Publisher.BackoffInitialSecs = defaultBackoffInitialSecs
	}
	if c.Publisher.BackoffMaxSecs < c.Publisher.BackoffInitialSecs {
		c.Publisher.BackoffMaxSecs = defaultBackoffMaxSecs
	}
	if c.Publisher.StorageRetryCount <= 0 {
		c.Publisher.StorageRetryCount = defaultStorageRetryCount
	}
	if c.Publisher.StorageRetryDelayMS <= 0 {
		c.Publisher.StorageRetryDelayMS = defaultStorageRetryDelayMS
	}
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Daily.MaxMessages <= 0 {
		c.Daily.MaxMessages = defaultDailyMaxMessages
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	return nil
}
