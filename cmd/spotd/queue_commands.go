package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spotd/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the message queue",
	}
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show message counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue stats: %w", err)
			}

			rows := make([][]string, 0, len(stats))
			total := 0
			for _, status := range queue.AllStatuses() {
				count := stats[status]
				total += count
				rows = append(rows, []string{string(status), strconv.Itoa(count)})
			}
			rows = append(rows, []string{"total", strconv.Itoa(total)})
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Messages"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			statuses := queue.AllStatuses()
			if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
				statuses = statuses[:0]
				for _, raw := range strings.Split(trimmed, ",") {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}
			}

			messages, err := store.ListByStatus(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list messages: %w", err)
			}

			rows := make([][]string, 0, len(messages))
			for _, msg := range messages {
				rows = append(rows, []string{
					strconv.FormatInt(msg.ID, 10),
					string(msg.Status),
					truncateText(msg.Text, 48),
					msg.MediaID,
					formatTimestamp(msg.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Text", "Media", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Comma-separated statuses to include")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed messages to approved so they publish again",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid message id %q", arg)
				}
				ids = append(ids, id)
			}

			reset, err := store.RetryFailed(cmd.Context(), ids...)
			if err != nil {
				return fmt.Errorf("retry failed messages: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d message(s) to %s\n", reset, queue.StatusApproved)
			return nil
		},
	}
}

func openStore(ctx *commandContext) (*queue.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

func truncateText(text string, limit int) string {
	runes := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Local().Format("2006-01-02 15:04")
}
