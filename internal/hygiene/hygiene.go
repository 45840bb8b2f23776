// Package hygiene keeps the durable queue free of jobs that can no longer
// act. Purge runs before abort and redo so a reset record cannot be called
// back by an orphaned job; Sweep runs on a schedule to collect entries left
// behind by terminal records and to expire preserved failures.
package hygiene

import (
	"context"
	"log/slog"
	"time"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/record"
)

type Service struct {
	store     *record.Store
	retention time.Duration
	logger    *slog.Logger
}

func New(store *record.Store, cfg config.Hygiene, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:     store,
		retention: time.Duration(cfg.FailedRetentionDays) * 24 * time.Hour,
		logger:    logging.NewComponentLogger(logger, "hygiene"),
	}
}

// Purge removes pending and failed queue entries for a segment by its
// structured key. Errors are returned for logging but callers treat them as
// non-fatal: the reconciler's guard rule renders a straggler callback inert.
func (s *Service) Purge(ctx context.Context, courseID, segmentID int64) error {
	pending, failed, err := s.store.PurgeSegmentJobs(ctx, courseID, segmentID)
	if err != nil {
		s.logger.WarnContext(ctx, "purge failed",
			logging.Int64(logging.FieldCourseID, courseID),
			logging.Int64(logging.FieldSegmentID, segmentID),
			logging.Error(err))
		return err
	}
	if pending > 0 || failed > 0 {
		s.logger.InfoContext(ctx, "purged segment jobs",
			logging.Int64(logging.FieldCourseID, courseID),
			logging.Int64(logging.FieldSegmentID, segmentID),
			logging.Int64("pending", pending),
			logging.Int64("failed", failed))
	}
	return nil
}

// Sweep collects queue entries whose records are terminal and failed entries
// older than the retention window. Scheduled by the daemon.
func (s *Service) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	orphaned, expired, err := s.store.SweepOrphanedJobs(ctx, cutoff)
	if err != nil {
		s.logger.WarnContext(ctx, "sweep failed", logging.Error(err))
		return
	}
	if orphaned > 0 || expired > 0 {
		s.logger.InfoContext(ctx, "queue swept",
			logging.Int64("orphaned", orphaned),
			logging.Int64("expired_failed", expired))
	}
}
