package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"spotd/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage spotd configuration",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var pathFlag string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pathFlag
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&pathFlag, "path", "", "Destination path for the sample config")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"data_dir", cfg.Paths.DataDir},
				{"log_dir", cfg.Paths.LogDir},
				{"output_dir", cfg.Paths.OutputDir},
				{"platform.username", cfg.Platform.Username},
				{"platform.account_handle", cfg.Platform.AccountHandle},
				{"platform.session_file", cfg.Platform.SessionFile},
				{"render.size", fmt.Sprintf("%dx%d", cfg.Render.Width, cfg.Render.Height)},
				{"render.wkhtmltoimage", cfg.Render.WkhtmlBinary},
				{"render.chromium", cfg.Render.ChromiumBinary},
				{"moderation.on_inconclusive", cfg.Moderation.OnInconclusive},
				{"publisher.max_attempts", strconv.Itoa(cfg.Publisher.MaxAttempts)},
				{"workflow.poll_interval", strconv.Itoa(cfg.Workflow.PollInterval) + "s"},
				{"workflow.posts_per_hour", strconv.Itoa(cfg.Workflow.PostsPerHour)},
				{"daily.enabled", yesNo(cfg.Daily.Enabled)},
				{"daily.post_time", cfg.Daily.PostTime},
				{"notifications.ntfy_topic", cfg.Notifications.NtfyTopic},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
				{"secrets.password", maskSecret(cfg.Secrets.Password)},
				{"secrets.two_factor_seed", maskSecret(cfg.Secrets.TwoFactorSeed)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func maskSecret(value string) string {
	if value == "" {
		return "(not set)"
	}
	return "(set)"
}
