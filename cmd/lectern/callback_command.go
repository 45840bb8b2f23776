package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newCallbackCommand(ctx *commandContext) *cobra.Command {
	var stage string
	var reportStatus string
	var data string
	var dataFile string

	cmd := &cobra.Command{
		Use:   "callback <course-id> <segment-id>",
		Short: "Deliver a worker progress report by hand",
		Long: "Deliver a worker progress report by hand, exactly as an external\n" +
			"stage worker would over the callback endpoint. Useful for scripted\n" +
			"testing and for replaying a report that was lost in transit.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, segmentID, err := parseSegmentArgs(args)
			if err != nil {
				return err
			}

			payload, err := resolveCallbackData(data, dataFile)
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Callback(ipc.CallbackRequest{
					CourseID:  courseID,
					SegmentID: segmentID,
					Stage:     stage,
					Status:    reportStatus,
					DataJSON:  payload,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Applied {
					fmt.Fprintf(out, "Report applied (status: %s)\n", statusLabel(resp.Status))
				} else {
					fmt.Fprintf(out, "Report already accounted for (status: %s)\n", statusLabel(resp.Status))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Pipeline stage the report is for (audio_extraction, transcription, terminology)")
	cmd.Flags().StringVar(&reportStatus, "status", "", "Report status (started, completed, failed)")
	cmd.Flags().StringVar(&data, "data", "", "Inline JSON response data")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Path to a file holding JSON response data")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func resolveCallbackData(inline, file string) (string, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	if inline != "" && file != "" {
		return "", errors.New("specify only one of --data or --data-file")
	}
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read data file: %w", err)
		}
		inline = strings.TrimSpace(string(raw))
	}
	if inline == "" {
		return "", nil
	}
	if !json.Valid([]byte(inline)) {
		return "", errors.New("response data is not valid JSON")
	}
	return inline, nil
}
