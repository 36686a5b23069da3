package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"easel/internal/ipc"
	"easel/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, run, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("System Status", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range systemStatusLines(ctx, status, colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Active Run", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range runStatusLines(status, colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Queue Status", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildQueueStatusRows(status.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the status as JSON")
	return cmd
}

func systemStatusLines(ctx *commandContext, status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 8)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not processing the queue", colorize))
	}
	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}

	cfg := ctx.configValue()
	if cfg == nil {
		return lines
	}
	lines = append(lines, endpointLine("Synthesis engine", preflight.CheckEndpoint(context.Background(), "Synthesis engine", cfg.Synthesis.Endpoint), colorize))
	if cfg.Scorer.Enabled {
		lines = append(lines, endpointLine("Semantic scorer", preflight.CheckEndpoint(context.Background(), "Semantic scorer", cfg.Scorer.Endpoint), colorize))
	}
	lines = append(lines, directoryLine("Output directory", cfg.Paths.OutputDir, colorize))
	return lines
}

func runStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := []string{
		renderStatusLine("State", stateKind(status.State), status.State, colorize),
	}
	counters := status.Counters
	if counters.Total > 0 {
		progress := fmt.Sprintf("%d/%d (accepted %d, rejected %d, retries %d)",
			counters.CurrentIndex, counters.Total, counters.Accepted, counters.Rejected, counters.Retries)
		lines = append(lines, renderStatusLine("Progress", statusInfo, progress, colorize))
		lines = append(lines, renderStatusLine("Mode", statusInfo, string(counters.Mode), colorize))
		if counters.Paused {
			lines = append(lines, renderStatusLine("Paused", statusWarn, "waiting at item boundary", colorize))
		}
	}
	return lines
}

func stateKind(state string) statusKind {
	switch state {
	case "running", "completed":
		return statusOK
	case "paused", "cancelling":
		return statusWarn
	case "error":
		return statusError
	default:
		return statusInfo
	}
}

func endpointLine(label string, result preflight.Result, colorize bool) string {
	if result.Passed {
		return renderStatusLine(label, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(label, statusWarn, result.Detail, colorize)
}

func directoryLine(label, path string, colorize bool) string {
	result := preflight.CheckDirectoryAccess(label, path)
	if result.Passed {
		return renderStatusLine(label, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(label, statusError, result.Detail, colorize)
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	order := []string{"pending", "running", "completed", "failed", "cancelled"}
	rows := make([][]string, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, status := range order {
		seen[status] = true
		if count := stats[status]; count > 0 {
			rows = append(rows, []string{status, strconv.Itoa(count)})
		}
	}

	extras := make([]string, 0)
	for status, count := range stats {
		if status == "total" || seen[status] || count == 0 {
			continue
		}
		extras = append(extras, status)
	}
	sort.Strings(extras)
	for _, status := range extras {
		rows = append(rows, []string{status, strconv.Itoa(stats[status])})
	}
	return rows
}
