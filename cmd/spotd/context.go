package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/notifications"
	"spotd/internal/platform"
	"spotd/internal/publish"
	"spotd/internal/queue"
	"spotd/internal/render"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// pipeline bundles the fully wired publishing stack for CLI commands.
type pipeline struct {
	cfg          *config.Config
	store        *queue.Store
	orchestrator *publish.Orchestrator
	notifier     notifications.Service
	logger       *slog.Logger
}

func (p *pipeline) Close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}

// buildPipeline wires store, renderer, platform client, and orchestrator
// for one-shot CLI invocations.
func (c *commandContext) buildPipeline(logger *slog.Logger) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}

	client, err := platform.NewClient(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	sessionStore, err := platform.NewFileSessionStore(filepath.Dir(cfg.Platform.SessionFile))
	if err != nil {
		store.Close()
		return nil, err
	}
	challenges := platform.NewChallengeStore(challengeTTL(cfg))
	session := platform.NewSession(cfg, client, sessionStore, challenges, logger)
	publisher := platform.NewPublisher(cfg, client, session, logger)
	renderer := render.New(cfg, logger)
	notifier := notifications.NewService(cfg)

	orchestrator, err := publish.NewOrchestrator(cfg, store, renderer, publisher, notifier, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &pipeline{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		notifier:     notifier,
		logger:       logger,
	}, nil
}

func challengeTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Platform.ChallengeTTL) * time.Second
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
