package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(listStatuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Segments) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No segments tracked")
					return nil
				}

				rows := make([][]string, 0, len(resp.Segments))
				for _, seg := range resp.Segments {
					rows = append(rows, []string{
						fmt.Sprintf("%d", seg.CourseID),
						fmt.Sprintf("%d", seg.SegmentID),
						statusLabel(seg.Status),
						fmt.Sprintf("%d%%", seg.ProgressPercent),
						orDash(seg.ContentKind),
						orDash(seg.ErrorMessage),
					})
				}
				table := renderTable(
					[]string{"Course", "Segment", "Status", "Progress", "Content", "Error"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by pipeline status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
