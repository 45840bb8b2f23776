// Package daemon owns the long-running coordinator process: the component
// graph around the record store, the single-instance lock, and the scheduled
// queue hygiene sweep. The IPC server fronts it as the control plane.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"lectern/internal/classify"
	"lectern/internal/config"
	"lectern/internal/dispatch"
	"lectern/internal/hygiene"
	"lectern/internal/logging"
	"lectern/internal/orchestrator"
	"lectern/internal/pipeline"
	"lectern/internal/preflight"
	"lectern/internal/reconcile"
	"lectern/internal/record"
	"lectern/internal/statuscache"
)

// Daemon wires the pipeline components and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *record.Store
	cache      *statuscache.Cache
	orch       *orchestrator.Orchestrator
	reconciler *reconcile.Reconciler
	hygiene    *hygiene.Service
	scheduler  *cron.Cron

	logPath  string
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockPath     string
	Records      record.HealthSummary
	Queue        record.QueueStats
}

// New builds the full component graph. The caller owns Close.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := record.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	cache, err := statuscache.New(cfg.StatusCache, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connect status cache: %w", err)
	}

	dispatcher := dispatch.New(store, cfg, cache, logger)
	hyg := hygiene.New(store, cfg.Hygiene, logger)
	policy := pipeline.Policy{
		AutoTranscribe:     cfg.Pipeline.AutoTranscribe,
		TerminologyEnabled: cfg.Pipeline.TerminologyEnabled,
	}
	reconciler := reconcile.New(store, dispatcher, classify.New(cfg.Classifier), cache, policy, logger)
	orch := orchestrator.New(store, dispatcher, hyg, cache, cfg, logger)

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		cache:      cache,
		orch:       orch,
		reconciler: reconciler,
		hygiene:    hyg,
		scheduler:  cron.New(),
		logPath:    cfg.LogPath(),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, runs preflight, and begins the hygiene
// schedule.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lectern daemon instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg, d.cache)
	for _, result := range results {
		d.logger.Info("preflight check",
			logging.String("check", result.Name),
			logging.Bool("passed", result.Passed),
			logging.String("detail", result.Detail))
	}
	if !preflight.Passed(results) {
		_ = d.lock.Unlock()
		return fmt.Errorf("preflight failed: %s", failedCheckNames(results))
	}

	schedule := strings.TrimSpace(d.cfg.Hygiene.SweepSchedule)
	if schedule != "" && len(d.scheduler.Entries()) == 0 {
		if _, err := d.scheduler.AddFunc(schedule, func() {
			d.hygiene.Sweep(context.Background())
		}); err != nil {
			_ = d.lock.Unlock()
			return fmt.Errorf("schedule hygiene sweep: %w", err)
		}
	}
	d.scheduler.Start()

	d.running.Store(true)
	d.logger.Info("lectern daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.cfg.DatabasePath()),
		logging.String("sweep_schedule", schedule))
	return nil
}

// Stop halts the hygiene schedule and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	<-d.scheduler.Stop().Done()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("lectern daemon stopped")
}

// Close stops the daemon and releases the store and cache.
func (d *Daemon) Close() error {
	d.Stop()
	if err := d.cache.Close(); err != nil {
		d.logger.Warn("close status cache", logging.Error(err))
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns runtime and aggregate pipeline information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockPath:     d.lockPath,
	}
	if health, err := d.store.Health(ctx); err == nil {
		status.Records = health
	}
	if stats, err := d.store.JobStats(ctx); err == nil {
		status.Queue = stats
	}
	return status
}

// SegmentStatus returns the status view for a segment, creating it lazily.
func (d *Daemon) SegmentStatus(ctx context.Context, courseID, segmentID int64) (orchestrator.StatusView, error) {
	return d.orch.Status(ctx, courseID, segmentID)
}

// SegmentRecord returns the full record without lazy creation.
func (d *Daemon) SegmentRecord(ctx context.Context, courseID, segmentID int64) (*record.Record, error) {
	return d.orch.Record(ctx, courseID, segmentID)
}

// StartSegment dispatches audio extraction for a segment.
func (d *Daemon) StartSegment(ctx context.Context, courseID, segmentID int64, opts dispatch.Options) (*record.Record, error) {
	return d.orch.Start(ctx, courseID, segmentID, opts)
}

// Approve releases the transcription gate.
func (d *Daemon) Approve(ctx context.Context, courseID, segmentID int64, by string) (*record.Record, error) {
	return d.orch.Approve(ctx, courseID, segmentID, by)
}

// Abort resets a segment and purges its jobs.
func (d *Daemon) Abort(ctx context.Context, courseID, segmentID int64) (*record.Record, error) {
	return d.orch.Abort(ctx, courseID, segmentID)
}

// Redo re-runs a terminal segment with the given overrides.
func (d *Daemon) Redo(ctx context.Context, courseID, segmentID int64, opts dispatch.Options) (*record.Record, error) {
	return d.orch.Redo(ctx, courseID, segmentID, opts)
}

// Reconcile applies a worker callback.
func (d *Daemon) Reconcile(ctx context.Context, courseID, segmentID int64, report reconcile.Report) (reconcile.Outcome, error) {
	return d.reconciler.Reconcile(ctx, courseID, segmentID, report)
}

// ListRecords returns records, optionally filtered by status.
func (d *Daemon) ListRecords(ctx context.Context, statuses ...record.Status) ([]*record.Record, error) {
	return d.orch.List(ctx, statuses...)
}

// PendingJobs returns queued jobs for display.
func (d *Daemon) PendingJobs(ctx context.Context) ([]*record.Job, error) {
	return d.store.PendingJobs(ctx)
}

// Sweep runs a hygiene pass immediately.
func (d *Daemon) Sweep(ctx context.Context) {
	d.hygiene.Sweep(ctx)
}

// LogPath returns the daemon log file path.
func (d *Daemon) LogPath() string {
	return d.logPath
}

func failedCheckNames(results []preflight.Result) string {
	var names []string
	for _, result := range results {
		if !result.Passed {
			names = append(names, result.Name)
		}
	}
	return strings.Join(names, ", ")
}
