package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"spotd/internal/logging"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var tokenFlag string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a new spot message to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			text := strings.Join(args, " ")
			msg, err := store.Add(cmd.Context(), text, tokenFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added message %d (%s)\n", msg.ID, msg.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "Anonymous submitter token")
	return cmd
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var publishFlag bool

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending or in-review message",
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

			if err := pl.orchestrator.Approve(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message %d approved\n", id)

			if publishFlag {
				result, err := pl.orchestrator.PublishNow(cmd.Context(), id)
				if err != nil {
					return err
				}
				printPublishResult(cmd, result)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&publishFlag, "publish", false, "Publish immediately after approving")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending or in-review message",
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

			if err := pl.orchestrator.Reject(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message %d rejected\n", id)
			return nil
		},
	}
}

func parseMessageID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q", raw)
	}
	return id, nil
}
