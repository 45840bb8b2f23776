package ipc

// Request/response pairs for the daemon control plane. Kept flat and
// JSON-friendly; the CLI renders them.

type PingRequest struct{}

type PingResponse struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	DatabasePath string `json:"database_path"`
	LockPath     string `json:"lock_path"`
}

type StatusRequest struct {
	CourseID  int64 `json:"course_id"`
	SegmentID int64 `json:"segment_id"`
}

type StatusResponse struct {
	CourseID        int64   `json:"course_id"`
	SegmentID       int64   `json:"segment_id"`
	Status          string  `json:"status"`
	ProgressPercent int     `json:"progress_percentage"`
	HasAudio        bool    `json:"has_audio"`
	HasTranscript   bool    `json:"has_transcript"`
	HasTerminology  bool    `json:"has_terminology"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ContentKind     string  `json:"content_kind,omitempty"`
	AudioSeconds    float64 `json:"audio_seconds,omitempty"`
	TranscribeSecs  float64 `json:"transcription_seconds,omitempty"`
	TerminologySecs float64 `json:"terminology_seconds,omitempty"`
}

type ListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

type SegmentSummary struct {
	CourseID        int64  `json:"course_id"`
	SegmentID       int64  `json:"segment_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percentage"`
	ContentKind     string `json:"content_kind,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

type ListResponse struct {
	Segments []SegmentSummary `json:"segments"`
}

type StartRequest struct {
	CourseID  int64  `json:"course_id"`
	SegmentID int64  `json:"segment_id"`
	Quality   string `json:"quality,omitempty"`
	Force     bool   `json:"force,omitempty"`
}

type ActionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ApproveRequest struct {
	CourseID  int64  `json:"course_id"`
	SegmentID int64  `json:"segment_id"`
	By        string `json:"by,omitempty"`
}

type AbortRequest struct {
	CourseID  int64 `json:"course_id"`
	SegmentID int64 `json:"segment_id"`
}

type RedoRequest struct {
	CourseID   int64  `json:"course_id"`
	SegmentID  int64  `json:"segment_id"`
	Force      bool   `json:"force,omitempty"`
	Quality    string `json:"quality,omitempty"`
	Preset     string `json:"preset,omitempty"`
	AutoPreset bool   `json:"auto_preset,omitempty"`
}

type CallbackRequest struct {
	CourseID  int64  `json:"course_id"`
	SegmentID int64  `json:"segment_id"`
	Stage     string `json:"stage"`
	Status    string `json:"status"`
	DataJSON  string `json:"data_json,omitempty"`
}

type CallbackResponse struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status"`
}

type JobsRequest struct{}

type JobSummary struct {
	ID        string `json:"id"`
	Lane      string `json:"lane"`
	Stage     string `json:"stage"`
	CourseID  int64  `json:"course_id"`
	SegmentID int64  `json:"segment_id"`
	CreatedAt string `json:"created_at"`
}

type JobsResponse struct {
	Jobs           []JobSummary   `json:"jobs"`
	PendingByLane  map[string]int `json:"pending_by_lane"`
	FailedCount    int            `json:"failed_count"`
	RecordsHealthy bool           `json:"records_healthy"`
}

type HealthRequest struct{}

type HealthResponse struct {
	Total      int `json:"total"`
	Ready      int `json:"ready"`
	InFlight   int `json:"in_flight"`
	Awaiting   int `json:"awaiting"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	QueuedJobs int `json:"queued_jobs"`
	FailedJobs int `json:"failed_jobs"`
}

type SweepRequest struct{}

type SweepResponse struct {
	Triggered bool `json:"triggered"`
}
