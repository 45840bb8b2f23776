package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show pending stage jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Jobs()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No pending jobs")
				} else {
					rows := make([][]string, 0, len(resp.Jobs))
					for _, job := range resp.Jobs {
						rows = append(rows, []string{
							job.ID,
							job.Lane,
							statusLabel(job.Stage),
							fmt.Sprintf("%d", job.CourseID),
							fmt.Sprintf("%d", job.SegmentID),
							job.CreatedAt,
						})
					}
					table := renderTable(
						[]string{"ID", "Lane", "Stage", "Course", "Segment", "Created"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
					)
					fmt.Fprintln(out, table)
				}

				for lane, count := range resp.PendingByLane {
					fmt.Fprintf(out, "Lane %s: %d pending\n", lane, count)
				}
				if resp.FailedCount > 0 {
					fmt.Fprintf(out, "Failed jobs retained: %d\n", resp.FailedCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
