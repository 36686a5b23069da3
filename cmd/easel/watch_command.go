package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/events"
	"easel/internal/ipc"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream progress events for the active run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				return watchEvents(cmd, client, "")
			})
		},
	}
}

// watchEvents polls the daemon event buffer and prints progress lines
// until the watched run reaches a terminal event or the command context
// ends. An empty batchID follows whichever run is active.
func watchEvents(cmd *cobra.Command, client *ipc.Client, batchID string) error {
	out := cmd.OutOrStdout()
	var since uint64

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		resp, err := client.Events(since)
		if err != nil {
			return err
		}
		for _, event := range resp.Events {
			since = event.Seq
			if batchID != "" && event.BatchID != batchID {
				continue
			}
			fmt.Fprintln(out, formatEvent(event))
			switch event.Type {
			case events.TypeCompleted, events.TypeCancelled, events.TypeFailed:
				return nil
			}
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func formatEvent(event events.Event) string {
	switch event.Type {
	case events.TypeStarted:
		return fmt.Sprintf("[%s] run started, %d items", shortID(event.BatchID), event.Total)
	case events.TypeProgress:
		line := fmt.Sprintf("[%s] %d/%d accepted=%d rejected=%d",
			shortID(event.BatchID), event.Current, event.Total, event.Accepted, event.Rejected)
		if event.ETA > 0 {
			line += fmt.Sprintf(" eta=%s", event.ETA.Round(time.Second))
		}
		if event.Status != "" {
			line += " " + event.Status
		}
		return line
	case events.TypeCompleted:
		return fmt.Sprintf("[%s] run completed, accepted=%d rejected=%d",
			shortID(event.BatchID), event.Accepted, event.Rejected)
	case events.TypeCancelled:
		return fmt.Sprintf("[%s] run cancelled after %d/%d items",
			shortID(event.BatchID), event.Current, event.Total)
	case events.TypeFailed:
		return fmt.Sprintf("[%s] run failed: %s", shortID(event.BatchID), event.Message)
	default:
		return fmt.Sprintf("[%s] %s", shortID(event.BatchID), event.Type)
	}
}

func shortID(batchID string) string {
	if len(batchID) > 8 {
		return batchID[:8]
	}
	return batchID
}
