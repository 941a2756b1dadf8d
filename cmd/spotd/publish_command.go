package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spotd/internal/logging"
	"spotd/internal/publish"
	"spotd/internal/queue"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish approved messages",
	}
	publishCmd.AddCommand(newPublishNowCommand(ctx))
	publishCmd.AddCommand(newPublishBatchCommand(ctx))
	return publishCmd
}

func newPublishNowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "now <id>",
		Short: "Render and publish one approved message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMessageID(args[0])
			if err != nil {
				return err
			}

			pl, err := ctx.buildPipeline(logging.NewNop())
			if err != nil {
				return err
			}
			defer pl.Close()

			result, err := pl.orchestrator.PublishNow(cmd.Context(), id)
			if err != nil {
				return err
			}
			printPublishResult(cmd, result)
			return nil
		},
	}
}

func newPublishBatchCommand(ctx *commandContext) *cobra.Command {
	var windowFlag time.Duration

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Publish every approved message from the recent window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := ctx.buildPipeline(logging.NewNop())
			if err != nil {
				return err
			}
			defer pl.Close()

			windowEnd := time.Now()
			windowStart := windowEnd.Add(-windowFlag)
			summary, err := pl.orchestrator.RunDailyBatch(cmd.Context(), windowStart, windowEnd)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Batch complete: %d posted, %d failed\n",
				len(summary.Succeeded), len(summary.Failed))
			for _, failure := range summary.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "  message %d: %s\n", failure.MessageID, failure.Reason)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&windowFlag, "window", 24*time.Hour, "How far back to look for approved messages")
	return cmd
}

func printPublishResult(cmd *cobra.Command, result *publish.Result) {
	switch result.Status {
	case queue.StatusPosted:
		fmt.Fprintf(cmd.OutOrStdout(), "Message %d posted (media %s, backend %s)\n",
			result.MessageID, result.MediaID, result.Backend)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Message %d %s: %s\n", result.MessageID, result.Status, result.Err)
	}
}
