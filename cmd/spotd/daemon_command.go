package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spotd/internal/daemon"
	"spotd/internal/logging"
	"spotd/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the publishing daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(ctx)
		},
	}
}

func runDaemonProcess(ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("spotd-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           resolveLogFormat(cfg.Logging.Format),
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "spotd-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "spotd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	pl, err := ctx.buildPipeline(logger)
	if err != nil {
		return err
	}
	defer pl.Close()

	manager := workflow.NewManager(cfg, pl.store, pl.orchestrator, logger)
	d, err := daemon.New(cfg, pl.store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("spotd daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

// resolveLogFormat maps the "auto" format onto console for interactive runs
// and json when output is piped or captured.
func resolveLogFormat(format string) string {
	if format != "" && format != "auto" {
		return format
	}
	if isTerminal(os.Stdout) {
		return "console"
	}
	return "json"
}
