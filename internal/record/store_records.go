package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = `id, course_id, segment_id, status,
    audio_path, audio_duration_seconds, audio_size_bytes, audio_silence_ratio,
    transcript_path, transcript_json, transcript_segment_count,
    terminology_path, terminology_json, term_count,
    content_kind, skip_reason,
    approved, approved_at, approved_by,
    audio_started_at, audio_completed_at, audio_seconds,
    transcription_started_at, transcription_completed_at, transcription_seconds,
    terminology_started_at, terminology_completed_at, terminology_seconds,
    error_message, terminology_error, created_at, updated_at`

// Ensure fetches the record for a segment, creating it in the ready state if
// absent. Records are created lazily on first status query.
func (s *Store) Ensure(ctx context.Context, courseID, segmentID int64) (*Record, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO processing_records (course_id, segment_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (course_id, segment_id) DO NOTHING`,
		courseID,
		segmentID,
		StatusReady,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("ensure record: %w", err)
	}
	rec, err := s.Get(ctx, courseID, segmentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("record for segment %d missing after insert", segmentID)
	}
	return rec, nil
}

// Get fetches a record by its segment key. Returns nil when absent.
func (s *Store) Get(ctx context.Context, courseID, segmentID int64) (*Record, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+recordColumns+` FROM processing_records WHERE course_id = ? AND segment_id = ?`,
		courseID,
		segmentID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Update persists changes to an existing record without a status guard.
// Use UpdateGuarded for transitions that race with callbacks.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(ctx, updateRecordSQL, updateRecordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// UpdateGuarded persists changes only if the stored status still equals
// expected, serializing concurrent transitions on the same record. Returns
// ErrStatusConflict when the compare-and-swap loses.
func (s *Store) UpdateGuarded(ctx context.Context, rec *Record, expected Status) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	rec.UpdatedAt = time.Now().UTC()
	args := append(updateRecordArgs(rec), expected)
	res, err := s.execWithRetry(ctx, updateRecordSQL+` AND status = ?`, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

const updateRecordSQL = `UPDATE processing_records
    SET status = ?,
        audio_path = ?, audio_duration_seconds = ?, audio_size_bytes = ?, audio_silence_ratio = ?,
        transcript_path = ?, transcript_json = ?, transcript_segment_count = ?,
        terminology_path = ?, terminology_json = ?, term_count = ?,
        content_kind = ?, skip_reason = ?,
        approved = ?, approved_at = ?, approved_by = ?,
        audio_started_at = ?, audio_completed_at = ?, audio_seconds = ?,
        transcription_started_at = ?, transcription_completed_at = ?, transcription_seconds = ?,
        terminology_started_at = ?, terminology_completed_at = ?, terminology_seconds = ?,
        error_message = ?, terminology_error = ?, updated_at = ?
    WHERE id = ?`

func updateRecordArgs(rec *Record) []any {
	return []any{
		rec.Status,
		nullableString(rec.AudioPath),
		rec.AudioDurationSeconds,
		rec.AudioSizeBytes,
		nullableFloat(rec.AudioSilenceRatio),
		nullableString(rec.TranscriptPath),
		nullableString(rec.TranscriptJSON),
		rec.TranscriptSegmentCount,
		nullableString(rec.TerminologyPath),
		nullableString(rec.TerminologyJSON),
		rec.TermCount,
		nullableString(rec.ContentKind),
		nullableString(rec.SkipReason),
		boolToInt(rec.Approved),
		nullableTime(rec.ApprovedAt),
		nullableString(rec.ApprovedBy),
		nullableTime(rec.AudioStartedAt),
		nullableTime(rec.AudioCompletedAt),
		rec.AudioSeconds,
		nullableTime(rec.TranscriptionStartedAt),
		nullableTime(rec.TranscriptionCompletedAt),
		rec.TranscriptionSeconds,
		nullableTime(rec.TerminologyStartedAt),
		nullableTime(rec.TerminologyCompletedAt),
		rec.TerminologySeconds,
		nullableString(rec.ErrorMessage),
		nullableString(rec.TerminologyError),
		rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.ID,
	}
}

// List returns records filtered by status set (or all records when no status
// is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	ctx = ensureContext(ctx)
	baseQuery := `SELECT ` + recordColumns + ` FROM processing_records`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM processing_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates record and queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusReady:
			health.Ready += count
		case status == StatusFailed:
			health.Failed += count
		case status == StatusCompleted:
			health.Completed += count
		case status.IsInFlight():
			health.InFlight += count
		default:
			health.Awaiting += count
		}
	}

	queueStats, err := s.JobStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	for _, count := range queueStats.PendingByLane {
		health.QueuedJobs += count
	}
	health.FailedJobs = queueStats.Failed
	return health, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		courseID      int64
		segmentID     int64
		statusStr     string
		audioPath     sql.NullString
		audioDuration sql.NullFloat64
		audioSize     sql.NullInt64
		silenceRatio  sql.NullFloat64
		transcript    sql.NullString
		transcriptJS  sql.NullString
		segmentCount  sql.NullInt64
		termPath      sql.NullString
		termJSON      sql.NullString
		termCount     sql.NullInt64
		contentKind   sql.NullString
		skipReason    sql.NullString
		approved      sql.NullInt64
		approvedAt    sql.NullString
		approvedBy    sql.NullString
		audioStart    sql.NullString
		audioDone     sql.NullString
		audioSecs     sql.NullFloat64
		transStart    sql.NullString
		transDone     sql.NullString
		transSecs     sql.NullFloat64
		termStart     sql.NullString
		termDone      sql.NullString
		termSecs      sql.NullFloat64
		errorMessage  sql.NullString
		termError     sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&courseID,
		&segmentID,
		&statusStr,
		&audioPath,
		&audioDuration,
		&audioSize,
		&silenceRatio,
		&transcript,
		&transcriptJS,
		&segmentCount,
		&termPath,
		&termJSON,
		&termCount,
		&contentKind,
		&skipReason,
		&approved,
		&approvedAt,
		&approvedBy,
		&audioStart,
		&audioDone,
		&audioSecs,
		&transStart,
		&transDone,
		&transSecs,
		&termStart,
		&termDone,
		&termSecs,
		&errorMessage,
		&termError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:                     id,
		CourseID:               courseID,
		SegmentID:              segmentID,
		Status:                 Status(statusStr),
		AudioPath:              audioPath.String,
		AudioDurationSeconds:   audioDuration.Float64,
		AudioSizeBytes:         audioSize.Int64,
		TranscriptPath:         transcript.String,
		TranscriptJSON:         transcriptJS.String,
		TranscriptSegmentCount: int(segmentCount.Int64),
		TerminologyPath:        termPath.String,
		TerminologyJSON:        termJSON.String,
		TermCount:              int(termCount.Int64),
		ContentKind:            contentKind.String,
		SkipReason:             skipReason.String,
		Approved:               approved.Valid && approved.Int64 != 0,
		ApprovedBy:             approvedBy.String,
		AudioSeconds:           audioSecs.Float64,
		TranscriptionSeconds:   transSecs.Float64,
		TerminologySeconds:     termSecs.Float64,
		ErrorMessage:           errorMessage.String,
		TerminologyError:       termError.String,
	}
	if silenceRatio.Valid {
		v := silenceRatio.Float64
		rec.AudioSilenceRatio = &v
	}
	rec.ApprovedAt = timePtrFromNull(approvedAt)
	rec.AudioStartedAt = timePtrFromNull(audioStart)
	rec.AudioCompletedAt = timePtrFromNull(audioDone)
	rec.TranscriptionStartedAt = timePtrFromNull(transStart)
	rec.TranscriptionCompletedAt = timePtrFromNull(transDone)
	rec.TerminologyStartedAt = timePtrFromNull(termStart)
	rec.TerminologyCompletedAt = timePtrFromNull(termDone)

	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}
