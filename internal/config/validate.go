package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateModeration(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDaily(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return errors.New("render.width and render.height must be positive")
	}
	if c.Render.MaxDimension < c.Render.Width && c.Render.MaxDimension < c.Render.Height {
		return fmt.Errorf("render.max_dimension %d is smaller than both card dimensions %dx%d",
			c.Render.MaxDimension, c.Render.Width, c.Render.Height)
	}
	return nil
}

func (c *Config) validateModeration() error {
	switch c.Moderation.OnInconclusive {
	case "review", "approve", "hold":
		return nil
	default:
		return fmt.Errorf("moderation.on_inconclusive must be one of review, approve, hold (got %q)", c.Moderation.OnInconclusive)
	}
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PostsPerHour < 0 {
		return errors.New("workflow.posts_per_hour must not be negative")
	}
	return nil
}

func (c *Config) validateDaily() error {
	if !c.Daily.Enabled {
		return nil
	}
	if _, err := time.Parse("15:04", c.Daily.PostTime); err != nil {
		return fmt.Errorf("daily.post_time must be HH:MM (got %q)", c.Daily.PostTime)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
