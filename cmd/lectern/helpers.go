package main

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// parseSegmentArgs resolves the positional <course-id> <segment-id> pair that
// every per-segment command takes.
func parseSegmentArgs(args []string) (int64, int64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected <course-id> <segment-id>, got %d arguments", len(args))
	}
	courseID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || courseID <= 0 {
		return 0, 0, fmt.Errorf("invalid course id %q", args[0])
	}
	segmentID, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
	if err != nil || segmentID <= 0 {
		return 0, 0, fmt.Errorf("invalid segment id %q", args[1])
	}
	return courseID, segmentID, nil
}

// statusLabel turns a snake_case pipeline status into a display label,
// e.g. "audio_extracted" -> "Audio Extracted".
func statusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fs", seconds)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
