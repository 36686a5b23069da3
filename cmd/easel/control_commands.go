package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/ipc"
)

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the active run at the next item boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause()
				if err != nil {
					return err
				}
				if !resp.Paused {
					return fmt.Errorf("pause refused: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Run paused")
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resume()
				if err != nil {
					return err
				}
				if !resp.Resumed {
					return fmt.Errorf("resume refused: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Run resumed")
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [item-id]",
		Short: "Cancel the active run, or a queued item by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				parsed, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
				if err != nil || parsed <= 0 {
					return fmt.Errorf("invalid item id %q", args[0])
				}
				id = parsed
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(id)
				if err != nil {
					return err
				}
				if !resp.Cancelled {
					return fmt.Errorf("cancel refused: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cancellation requested")
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop queue processing in the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if !resp.Stopped {
					return fmt.Errorf("daemon did not acknowledge stop")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				return nil
			})
		},
	}
}
