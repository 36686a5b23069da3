package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/ipc"
	"easel/internal/metrics"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show per-batch metrics and aggregate totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Metrics()
				if err != nil {
					return err
				}
				records := resp.Batches
				if limit > 0 && len(records) > limit {
					records = records[:limit]
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{
						"batches": records,
						"summary": summaryPayload(resp.Summary),
					})
				}

				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No batch metrics recorded yet")
					return nil
				}

				table := renderTable(
					[]string{"Batch", "Finished", "Mode", "Accepted", "Rejected", "Retries", "Avg Item", "Duration"},
					buildMetricsRows(records),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				)
				fmt.Fprint(out, table)

				s := resp.Summary
				fmt.Fprintf(out, "\n%d batches, %d images (%d accepted, %d rejected, %d retries)\n",
					s.Batches, s.Total, s.Accepted, s.Rejected, s.Retries)
				fmt.Fprintf(out, "Accept rate %.1f%%, average batch duration %s\n",
					s.AcceptRate*100, formatDuration(s.AvgDuration))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N batches")
	return cmd
}

func buildMetricsRows(records []metrics.BatchMetric) [][]string {
	rows := make([][]string, 0, len(records))
	for _, m := range records {
		rows = append(rows, []string{
			shortID(m.BatchID),
			m.FinishedAt.Local().Format("2006-01-02 15:04"),
			m.Mode,
			strconv.Itoa(m.Accepted),
			strconv.Itoa(m.Rejected),
			strconv.Itoa(m.Retries),
			fmt.Sprintf("%.1fs", m.AvgItemTime),
			formatDuration(m.Duration()),
		})
	}
	return rows
}

func summaryPayload(s metrics.Summary) map[string]any {
	return map[string]any{
		"batches":              s.Batches,
		"total":                s.Total,
		"accepted":             s.Accepted,
		"rejected":             s.Rejected,
		"retries":              s.Retries,
		"accept_rate":          s.AcceptRate,
		"avg_duration_seconds": s.AvgDuration.Seconds(),
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
