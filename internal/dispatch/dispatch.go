// Package dispatch enqueues stage work for external workers. Each dispatch
// builds the stage payload, routes it to a queue lane, and flips the record
// to the stage's in-flight status in the same store transaction, so a record
// never claims an in-flight stage without a job behind it.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/pipeline"
	"lectern/internal/record"
	"lectern/internal/services"
	"lectern/internal/statuscache"
)

// Options carries caller-supplied overrides for a dispatch.
type Options struct {
	// ForceReextraction tells the audio worker to ignore cached artifacts.
	ForceReextraction bool
	// Quality overrides the configured audio quality for this dispatch.
	Quality string
	// Preset overrides the configured transcription preset.
	Preset string
	// AutoPreset defers preset choice to the worker's own detection.
	AutoPreset bool
}

// Dispatcher builds payloads and enqueues stage jobs.
type Dispatcher struct {
	store  *record.Store
	cfg    *config.Config
	cache  *statuscache.Cache
	logger *slog.Logger
}

// New returns a dispatcher bound to the store and configuration.
func New(store *record.Store, cfg *config.Config, cache *statuscache.Cache, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		store:  store,
		cfg:    cfg,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Dispatch enqueues the given stage for the record on the lane the machine
// selected and flips the record to the stage's in-flight status, guarded on
// the record's current status. The stage's completed_at is cleared; its
// started_at is left to the worker's start ping.
func (d *Dispatcher) Dispatch(ctx context.Context, rec *record.Record, stage record.Stage, lane pipeline.Lane, opts Options) (*record.Job, error) {
	if rec == nil {
		return nil, services.Wrap(services.ErrValidation, "dispatch", string(stage), "record is required", nil)
	}

	payload, err := d.buildPayload(rec, stage, opts)
	if err != nil {
		return nil, err
	}

	job := &record.Job{
		ID:          uuid.NewString(),
		Lane:        d.laneName(lane),
		Stage:       stage,
		CourseID:    rec.CourseID,
		SegmentID:   rec.SegmentID,
		PayloadJSON: payload,
		CreatedAt:   time.Now().UTC(),
	}

	snapshot := *rec
	prior := rec.Status
	rec.Status = record.InFlightStatus(stage)
	rec.ClearStageCompletion(stage)
	rec.ErrorMessage = ""

	if err := d.store.EnqueueAndTransition(ctx, rec, job, prior); err != nil {
		// Leave the in-memory record matching the store so callers can retry.
		*rec = snapshot
		return nil, services.Wrap(services.ErrUnavailable, "dispatch", string(stage), "enqueue failed", err)
	}

	d.cache.SetSnapshot(ctx, rec)
	d.logger.InfoContext(ctx, "stage dispatched",
		logging.Int64(logging.FieldCourseID, rec.CourseID),
		logging.Int64(logging.FieldSegmentID, rec.SegmentID),
		logging.String(logging.FieldStage, string(stage)),
		logging.String(logging.FieldLane, job.Lane),
		logging.String(logging.FieldJobID, job.ID))
	return job, nil
}

// laneName maps the machine's lane selector onto the configured queue names.
func (d *Dispatcher) laneName(lane pipeline.Lane) string {
	if lane == pipeline.LaneHigh {
		return d.cfg.Queues.HighLane
	}
	return d.cfg.Queues.DefaultLane
}

// audioPayload is the extraction job body. JobID carries the segment id, the
// contract key the worker echoes back in its callback path; the worker
// resolves the source media from the content catalog by that id.
type audioPayload struct {
	JobID    int64  `json:"job_id"`
	CourseID int64  `json:"course_id"`
	Quality  string `json:"quality"`
	Force    bool   `json:"force_reextraction"`
}

type transcriptionPayload struct {
	JobID         int64  `json:"job_id"`
	CourseID      int64  `json:"course_id"`
	AudioPath     string `json:"audio_path"`
	Preset        string `json:"preset"`
	AutoPreset    bool   `json:"auto_preset"`
	TranscriptKey string `json:"transcript_key"`
}

type terminologyPayload struct {
	JobID          int64  `json:"job_id"`
	CourseID       int64  `json:"course_id"`
	TranscriptPath string `json:"transcript_path"`
	TranscriptJSON string `json:"transcript_json,omitempty"`
}

func (d *Dispatcher) buildPayload(rec *record.Record, stage record.Stage, opts Options) (string, error) {
	var body any
	switch stage {
	case record.StageAudioExtraction:
		quality := opts.Quality
		if quality == "" {
			quality = d.cfg.Pipeline.AudioQuality
		}
		body = audioPayload{
			JobID:    rec.SegmentID,
			CourseID: rec.CourseID,
			Quality:  quality,
			Force:    opts.ForceReextraction,
		}
	case record.StageTranscription:
		if rec.AudioPath == "" {
			return "", services.Wrap(services.ErrPrecondition, "dispatch", "transcription", "no extracted audio to transcribe", nil)
		}
		preset := opts.Preset
		if preset == "" && !opts.AutoPreset {
			preset = d.cfg.Pipeline.TranscriptPreset
		}
		body = transcriptionPayload{
			JobID:         rec.SegmentID,
			CourseID:      rec.CourseID,
			AudioPath:     rec.AudioPath,
			Preset:        preset,
			AutoPreset:    opts.AutoPreset,
			TranscriptKey: transcriptKey(d.cfg.Pipeline.TranscriptKeyPrefix, rec),
		}
	case record.StageTerminology:
		if rec.TranscriptPath == "" && rec.TranscriptJSON == "" {
			return "", services.Wrap(services.ErrPrecondition, "dispatch", "terminology", "no transcript to analyze", nil)
		}
		body = terminologyPayload{
			JobID:          rec.SegmentID,
			CourseID:       rec.CourseID,
			TranscriptPath: rec.TranscriptPath,
			TranscriptJSON: rec.TranscriptJSON,
		}
	default:
		return "", services.Wrap(services.ErrValidation, "dispatch", string(stage), "unknown stage", nil)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "dispatch", string(stage), "encode payload", err)
	}
	return string(raw), nil
}

func transcriptKey(prefix string, rec *record.Record) string {
	if prefix == "" {
		prefix = "transcripts"
	}
	return fmt.Sprintf("%s/%d/%d.json", prefix, rec.CourseID, rec.SegmentID)
}
