package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show pipeline health counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Health()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				rows := [][]string{
					{"Tracked segments", fmt.Sprintf("%d", resp.Total)},
					{"Ready", fmt.Sprintf("%d", resp.Ready)},
					{"In flight", fmt.Sprintf("%d", resp.InFlight)},
					{"Awaiting action", fmt.Sprintf("%d", resp.Awaiting)},
					{"Completed", fmt.Sprintf("%d", resp.Completed)},
					{"Failed", fmt.Sprintf("%d", resp.Failed)},
					{"Queued jobs", fmt.Sprintf("%d", resp.QueuedJobs)},
					{"Failed jobs retained", fmt.Sprintf("%d", resp.FailedJobs)},
				}
				table := renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
