package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/publish"
	"spotd/internal/queue"
	"spotd/internal/services"
)

// ApprovedSource provides the next message waiting to be published.
type ApprovedSource interface {
	NextApproved(ctx context.Context) (*queue.Message, error)
}

// Pipeline is the slice of the orchestrator the manager drives.
type Pipeline interface {
	PublishNow(ctx context.Context, id int64) (*publish.Result, error)
	RunDailyBatch(ctx context.Context, windowStart, windowEnd time.Time) (*publish.BatchSummary, error)
}

// Manager owns the daemon's background goroutines: the publish drain loop
// and the daily batch scheduler.
type Manager struct {
	source   ApprovedSource
	pipeline Pipeline
	logger   *slog.Logger

	pollInterval   time.Duration
	errorRetry     time.Duration
	postsPerHour   int
	daily          config.Daily
	dailyNext      func(now time.Time) (time.Time, error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	recentMu    sync.Mutex
	recentPosts []time.Time
}

// NewManager wires the workflow manager from configuration.
func NewManager(cfg *config.Config, source ApprovedSource, pipeline Pipeline, logger *slog.Logger) *Manager {
	m := &Manager{
		source:       source,
		pipeline:     pipeline,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.PollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		postsPerHour: cfg.Workflow.PostsPerHour,
		daily:        cfg.Daily,
	}
	m.dailyNext = func(now time.Time) (time.Time, error) {
		return nextDailyRun(now, cfg.Daily.PostTime)
	}
	return m
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.runDrainLoop(runCtx)
	if m.daily.Enabled {
		m.wg.Add(1)
		go m.runDailyScheduler(runCtx)
	}
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// runDrainLoop publishes approved messages one at a time, bounded by the
// hourly budget.
func (m *Manager) runDrainLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.logger.Info("publish loop started",
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("posts_per_hour", m.postsPerHour),
	)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("publish loop stopped")
			return
		case <-ticker.C:
		}

		if !m.budgetAvailable() {
			m.logger.Debug("hourly post budget exhausted, waiting")
			continue
		}

		msg, err := m.source.NextApproved(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			m.logger.Error("poll for approved message failed", logging.Error(err))
			if !sleepOrDone(ctx, m.errorRetry) {
				return
			}
			continue
		}
		if msg == nil {
			continue
		}

		result, err := m.pipeline.PublishNow(ctx, msg.ID)
		switch {
		case err != nil && ctx.Err() != nil:
			continue
		case err != nil:
			m.logger.Error("publish run failed",
				logging.Int64(logging.FieldMessageID, msg.ID),
				logging.Error(err),
			)
			if !sleepOrDone(ctx, m.errorRetry) {
				return
			}
		case result.Status == queue.StatusPosted:
			m.recordPost()
		}
	}
}

// runDailyScheduler fires the compilation batch once per day at the
// configured local time.
func (m *Manager) runDailyScheduler(ctx context.Context) {
	defer m.wg.Done()
	for {
		next, err := m.dailyNext(time.Now())
		if err != nil {
			m.logger.Error("daily schedule misconfigured", logging.Error(err))
			return
		}
		m.logger.Info("daily batch scheduled", logging.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		windowEnd := time.Now()
		windowStart := windowEnd.Add(-24 * time.Hour)
		summary, err := m.pipeline.RunDailyBatch(ctx, windowStart, windowEnd)
		if err != nil && ctx.Err() == nil {
			m.logger.Error("daily batch failed", logging.Error(err))
			continue
		}
		if summary != nil {
			m.logger.Info("daily batch done",
				logging.Int("succeeded", len(summary.Succeeded)),
				logging.Int("failed", len(summary.Failed)),
			)
		}
	}
}

// budgetAvailable reports whether another post fits in the rolling hour.
func (m *Manager) budgetAvailable() bool {
	if m.postsPerHour <= 0 {
		return true
	}
	m.recentMu.Lock()
	defer m.recentMu.Unlock()
	cutoff := time.Now().Add(-time.Hour)
	kept := m.recentPosts[:0]
	for _, t := range m.recentPosts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.recentPosts = kept
	return len(m.recentPosts) < m.postsPerHour
}

func (m *Manager) recordPost() {
	m.recentMu.Lock()
	defer m.recentMu.Unlock()
	m.recentPosts = append(m.recentPosts, time.Now())
}

// nextDailyRun resolves the next occurrence of an HH:MM local wall time.
func nextDailyRun(now time.Time, postTime string) (time.Time, error) {
	parsed, err := time.Parse("15:04", postTime)
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrConfiguration, "workflow", "daily", "parse post_time", err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
