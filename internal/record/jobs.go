package record

import "time"

// Job is a durable outbound queue entry awaiting pickup by an external
// worker gateway. Segment identity is carried as first-class columns so
// hygiene can purge by key instead of matching serialized payload text.
type Job struct {
	ID          string
	Lane        string
	Stage       Stage
	CourseID    int64
	SegmentID   int64
	PayloadJSON string
	Attempts    int
	CreatedAt   time.Time
}

// FailedJob preserves a queue entry that a consumer reported as undeliverable.
type FailedJob struct {
	ID          string
	Lane        string
	Stage       Stage
	CourseID    int64
	SegmentID   int64
	PayloadJSON string
	Error       string
	FailedAt    time.Time
}

// QueueStats counts durable queue entries per lane.
type QueueStats struct {
	PendingByLane map[string]int
	Failed        int
}
