package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <course-id> <segment-id>",
		Short: "Show processing status for a segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, segmentID, err := parseSegmentArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status(courseID, segmentID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				rows := [][]string{
					{"Course", fmt.Sprintf("%d", resp.CourseID)},
					{"Segment", fmt.Sprintf("%d", resp.SegmentID)},
					{"Status", statusLabel(resp.Status)},
					{"Progress", fmt.Sprintf("%d%%", resp.ProgressPercent)},
					{"Audio", yesNo(resp.HasAudio)},
					{"Transcript", yesNo(resp.HasTranscript)},
					{"Terminology", yesNo(resp.HasTerminology)},
				}
				if resp.ContentKind != "" {
					rows = append(rows, []string{"Content", statusLabel(resp.ContentKind)})
				}
				if resp.AudioSeconds > 0 || resp.TranscribeSecs > 0 || resp.TerminologySecs > 0 {
					rows = append(rows,
						[]string{"Extraction time", formatSeconds(resp.AudioSeconds)},
						[]string{"Transcription time", formatSeconds(resp.TranscribeSecs)},
						[]string{"Terminology time", formatSeconds(resp.TerminologySecs)},
					)
				}
				if resp.ErrorMessage != "" {
					rows = append(rows, []string{"Error", resp.ErrorMessage})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
