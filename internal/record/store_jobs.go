package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, lane, stage, course_id, segment_id, payload_json, attempts, created_at"

// EnqueueAndTransition inserts a queue job and flips the record to its
// in-flight status in one transaction, guarded by the expected status. If the
// enqueue or the guard fails nothing is persisted, so the record never claims
// an in-flight stage with no job behind it.
func (s *Store) EnqueueAndTransition(ctx context.Context, rec *Record, job *Job, expected Status) error {
	if rec == nil || job == nil {
		return errors.New("record and job are required")
	}
	ctx = ensureContext(ctx)
	rec.UpdatedAt = time.Now().UTC()

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin dispatch tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID,
			job.Lane,
			job.Stage,
			job.CourseID,
			job.SegmentID,
			job.PayloadJSON,
			job.Attempts,
			job.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		res, err := tx.ExecContext(ctx, updateRecordSQL+` AND status = ?`, append(updateRecordArgs(rec), expected)...)
		if err != nil {
			return fmt.Errorf("transition record: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return ErrStatusConflict
		}
		return tx.Commit()
	})
}

// JobsForSegment returns pending queue entries for a segment, oldest first.
func (s *Store) JobsForSegment(ctx context.Context, courseID, segmentID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE course_id = ? AND segment_id = ? ORDER BY created_at`,
		courseID,
		segmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs for segment: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// PendingJobs returns queue entries for the given lanes, oldest first. With no
// lanes every pending entry is returned.
func (s *Store) PendingJobs(ctx context.Context, lanes ...string) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)
	if len(lanes) == 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at`)
	} else {
		placeholders := makePlaceholders(len(lanes))
		args := make([]any, len(lanes))
		for i, lane := range lanes {
			args[i] = lane
		}
		rows, err = s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE lane IN (`+placeholders+`) ORDER BY created_at`, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("pending jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ClaimNextJob atomically removes and returns the oldest job, preferring
// lanes in the order given. Returns nil when every lane is empty. This is the
// pickup path for a worker gateway.
func (s *Store) ClaimNextJob(ctx context.Context, lanes ...string) (*Job, error) {
	ctx = ensureContext(ctx)
	var claimed *Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		laneOrder := lanes
		if len(laneOrder) == 0 {
			laneOrder = []string{""}
		}
		for _, lane := range laneOrder {
			query := `SELECT ` + jobColumns + ` FROM jobs`
			args := []any{}
			if lane != "" {
				query += ` WHERE lane = ?`
				args = append(args, lane)
			}
			query += ` ORDER BY created_at LIMIT 1`

			job, err := scanJob(tx.QueryRowContext(ctx, query, args...))
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("claim job: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
				return fmt.Errorf("remove claimed job: %w", err)
			}
			claimed = job
			break
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RecordFailedJob preserves a job a consumer could not deliver.
func (s *Store) RecordFailedJob(ctx context.Context, job *Job, cause string) error {
	if job == nil {
		return errors.New("job is nil")
	}
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO failed_jobs (id, lane, stage, course_id, segment_id, payload_json, error, failed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET error = excluded.error, failed_at = excluded.failed_at`,
		job.ID,
		job.Lane,
		job.Stage,
		job.CourseID,
		job.SegmentID,
		job.PayloadJSON,
		nullableString(cause),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record failed job: %w", err)
	}
	return nil
}

// PurgeSegmentJobs deletes pending and failed queue entries for a segment by
// the structured key columns. Returns counts of removed pending and failed
// entries.
func (s *Store) PurgeSegmentJobs(ctx context.Context, courseID, segmentID int64) (int64, int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE course_id = ? AND segment_id = ?`, courseID, segmentID)
	if err != nil {
		return 0, 0, fmt.Errorf("purge pending jobs: %w", err)
	}
	pending, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("rows affected: %w", err)
	}

	res, err = s.execWithRetry(ctx, `DELETE FROM failed_jobs WHERE course_id = ? AND segment_id = ?`, courseID, segmentID)
	if err != nil {
		return pending, 0, fmt.Errorf("purge failed jobs: %w", err)
	}
	failed, err := res.RowsAffected()
	if err != nil {
		return pending, 0, fmt.Errorf("rows affected: %w", err)
	}
	return pending, failed, nil
}

// SweepOrphanedJobs removes pending entries whose record is already terminal
// and failed entries older than the cutoff. Returns removed counts.
func (s *Store) SweepOrphanedJobs(ctx context.Context, failedBefore time.Time) (int64, int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE EXISTS (
            SELECT 1 FROM processing_records r
            WHERE r.course_id = jobs.course_id
              AND r.segment_id = jobs.segment_id
              AND r.status IN (?, ?)
        )`,
		StatusCompleted,
		StatusFailed,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep orphaned jobs: %w", err)
	}
	orphaned, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("rows affected: %w", err)
	}

	res, err = s.execWithRetry(
		ctx,
		`DELETE FROM failed_jobs WHERE failed_at < ?`,
		failedBefore.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return orphaned, 0, fmt.Errorf("sweep failed jobs: %w", err)
	}
	expired, err := res.RowsAffected()
	if err != nil {
		return orphaned, 0, fmt.Errorf("rows affected: %w", err)
	}
	return orphaned, expired, nil
}

// FailedJobsForSegment returns preserved failed entries for a segment.
func (s *Store) FailedJobsForSegment(ctx context.Context, courseID, segmentID int64) ([]*FailedJob, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, lane, stage, course_id, segment_id, payload_json, error, failed_at
         FROM failed_jobs WHERE course_id = ? AND segment_id = ? ORDER BY failed_at`,
		courseID,
		segmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed jobs for segment: %w", err)
	}
	defer rows.Close()

	var jobs []*FailedJob
	for rows.Next() {
		var (
			job       FailedJob
			stageStr  string
			errStr    sql.NullString
			failedRaw sql.NullString
		)
		if err := rows.Scan(&job.ID, &job.Lane, &stageStr, &job.CourseID, &job.SegmentID, &job.PayloadJSON, &errStr, &failedRaw); err != nil {
			return nil, err
		}
		job.Stage = Stage(stageStr)
		job.Error = errStr.String
		if failedAt, err := parseTimeString(failedRaw.String); err == nil {
			job.FailedAt = failedAt
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// JobStats counts pending entries per lane plus preserved failures.
func (s *Store) JobStats(ctx context.Context) (QueueStats, error) {
	ctx = ensureContext(ctx)
	stats := QueueStats{PendingByLane: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT lane, COUNT(1) FROM jobs GROUP BY lane`)
	if err != nil {
		return stats, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lane string
		var count int
		if err := rows.Scan(&lane, &count); err != nil {
			return stats, err
		}
		stats.PendingByLane[lane] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM failed_jobs`)
	if err := row.Scan(&stats.Failed); err != nil {
		return stats, fmt.Errorf("failed job count: %w", err)
	}
	return stats, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job        Job
		stageStr   string
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&job.ID, &job.Lane, &stageStr, &job.CourseID, &job.SegmentID, &job.PayloadJSON, &job.Attempts, &createdRaw); err != nil {
		return nil, err
	}
	job.Stage = Stage(stageStr)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	return &job, nil
}
