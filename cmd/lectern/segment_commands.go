package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var quality string
	var force bool

	cmd := &cobra.Command{
		Use:   "start <course-id> <segment-id>",
		Short: "Queue audio extraction for a segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, segmentID, err := parseSegmentArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start(ipc.StartRequest{
					CourseID:  courseID,
					SegmentID: segmentID,
					Quality:   quality,
					Force:     force,
				})
				return printActionResult(cmd, "Extraction queued", resp, err)
			})
		},
	}

	cmd.Flags().StringVar(&quality, "quality", "", "Audio quality profile for extraction")
	cmd.Flags().BoolVar(&force, "force", false, "Re-extract even if audio already exists")
	return cmd
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var approvedBy string

	cmd := &cobra.Command{
		Use:   "approve <course-id> <segment-id>",
		Short: "Approve a segment for transcription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, segmentID, err := parseSegmentArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Approve(ipc.ApproveRequest{
					CourseID:  courseID,
					SegmentID: segmentID,
					By:        approvedBy,
				})
				return printActionResult(cmd, "Transcription queued", resp, err)
			})
		},
	}

	cmd.Flags().StringVar(&approvedBy, "by", "", "Name recorded as the approver")
	return cmd
}

func newAbortCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "abort <course-id> <segment-id>",
		Short: "Abort processing and reset a segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, segmentID, err := parseSegmentArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Abort(ipc.AbortRequest{
					CourseID:  courseID,
					SegmentID: segmentID,
				})
				return printActionResult(cmd, "Segment reset", resp, err)
			})
		},
	}
}

func newRedoCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var quality string
	var preset string
	var autoPreset bool

	cmd := &cobra.Command{
		Use:   "redo <course-id> <segment-id>",
		Short: "Reprocess a completed or failed segment from scratch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, segmentID, err := parseSegmentArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Redo(ipc.RedoRequest{
					CourseID:   courseID,
					SegmentID:  segmentID,
					Force:      force,
					Quality:    quality,
					Preset:     preset,
					AutoPreset: autoPreset,
				})
				return printActionResult(cmd, "Reprocessing queued", resp, err)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-extract audio even if artifacts exist")
	cmd.Flags().StringVar(&quality, "quality", "", "Audio quality profile for extraction")
	cmd.Flags().StringVar(&preset, "preset", "", "Transcription preset to request")
	cmd.Flags().BoolVar(&autoPreset, "auto-preset", false, "Let the worker choose the transcription preset")
	return cmd
}

// printActionResult reports the outcome of a control action. The daemon
// discloses the current status even when the action is rejected, so failures
// still show where the segment actually is.
func printActionResult(cmd *cobra.Command, verb string, resp *ipc.ActionResponse, err error) error {
	out := cmd.OutOrStdout()
	if err != nil {
		if resp != nil && resp.Status != "" {
			fmt.Fprintf(out, "Segment is %s\n", statusLabel(resp.Status))
		}
		return err
	}
	fmt.Fprintf(out, "%s (status: %s)\n", verb, statusLabel(resp.Status))
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
	}
	return nil
}
