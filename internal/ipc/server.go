package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"lectern/internal/daemon"
	"lectern/internal/dispatch"
	"lectern/internal/logging"
	"lectern/internal/reconcile"
	"lectern/internal/record"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName("Lectern", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the context is canceled or Close runs.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockPath
	return nil
}

func (s *service) Status(req StatusRequest, resp *StatusResponse) error {
	view, err := s.daemon.SegmentStatus(s.ctx, req.CourseID, req.SegmentID)
	if err != nil {
		return err
	}
	resp.CourseID = view.CourseID
	resp.SegmentID = view.SegmentID
	resp.Status = view.Status
	resp.ProgressPercent = view.ProgressPercent
	resp.HasAudio = view.HasAudio
	resp.HasTranscript = view.HasTranscript
	resp.HasTerminology = view.HasTerminology
	resp.ErrorMessage = view.ErrorMessage
	resp.ContentKind = view.ContentKind
	resp.AudioSeconds = view.Timing.AudioSeconds
	resp.TranscribeSecs = view.Timing.TranscriptionSeconds
	resp.TerminologySecs = view.Timing.TerminologySeconds
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	statuses := make([]record.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		if parsed, ok := record.ParseStatus(raw); ok {
			statuses = append(statuses, parsed)
		}
	}
	records, err := s.daemon.ListRecords(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Segments = make([]SegmentSummary, 0, len(records))
	for _, rec := range records {
		resp.Segments = append(resp.Segments, SegmentSummary{
			CourseID:        rec.CourseID,
			SegmentID:       rec.SegmentID,
			Status:          string(rec.Status),
			ProgressPercent: rec.Progress(),
			ContentKind:     rec.ContentKind,
			ErrorMessage:    rec.ErrorMessage,
		})
	}
	return nil
}

func (s *service) Start(req StartRequest, resp *ActionResponse) error {
	rec, err := s.daemon.StartSegment(s.ctx, req.CourseID, req.SegmentID, dispatch.Options{
		Quality:           req.Quality,
		ForceReextraction: req.Force,
	})
	return actionResult(rec, err, resp, "extraction dispatched")
}

func (s *service) Approve(req ApproveRequest, resp *ActionResponse) error {
	rec, err := s.daemon.Approve(s.ctx, req.CourseID, req.SegmentID, req.By)
	return actionResult(rec, err, resp, "transcription approved")
}

func (s *service) Abort(req AbortRequest, resp *ActionResponse) error {
	rec, err := s.daemon.Abort(s.ctx, req.CourseID, req.SegmentID)
	return actionResult(rec, err, resp, "segment aborted")
}

func (s *service) Redo(req RedoRequest, resp *ActionResponse) error {
	rec, err := s.daemon.Redo(s.ctx, req.CourseID, req.SegmentID, dispatch.Options{
		ForceReextraction: req.Force,
		Quality:           req.Quality,
		Preset:            req.Preset,
		AutoPreset:        req.AutoPreset,
	})
	return actionResult(rec, err, resp, "redo dispatched")
}

func (s *service) Callback(req CallbackRequest, resp *CallbackResponse) error {
	var data reconcile.ResponseData
	if req.DataJSON != "" {
		if err := json.Unmarshal([]byte(req.DataJSON), &data); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	outcome, err := s.daemon.Reconcile(s.ctx, req.CourseID, req.SegmentID, reconcile.Report{
		Stage:  record.Stage(req.Stage),
		Status: req.Status,
		Data:   data,
	})
	resp.Applied = outcome.Applied
	resp.Status = string(outcome.Status)
	return err
}

func (s *service) Jobs(_ JobsRequest, resp *JobsResponse) error {
	jobs, err := s.daemon.PendingJobs(s.ctx)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, JobSummary{
			ID:        job.ID,
			Lane:      job.Lane,
			Stage:     string(job.Stage),
			CourseID:  job.CourseID,
			SegmentID: job.SegmentID,
			CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	status := s.daemon.Status(s.ctx)
	resp.PendingByLane = make(map[string]int, len(status.Queue.PendingByLane))
	for lane, count := range status.Queue.PendingByLane {
		resp.PendingByLane[lane] = count
	}
	resp.FailedCount = status.Queue.Failed
	resp.RecordsHealthy = status.Records.Failed == 0
	return nil
}

func (s *service) Health(_ HealthRequest, resp *HealthResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Total = status.Records.Total
	resp.Ready = status.Records.Ready
	resp.InFlight = status.Records.InFlight
	resp.Awaiting = status.Records.Awaiting
	resp.Completed = status.Records.Completed
	resp.Failed = status.Records.Failed
	resp.QueuedJobs = status.Records.QueuedJobs
	resp.FailedJobs = status.Records.FailedJobs
	return nil
}

func (s *service) Sweep(_ SweepRequest, resp *SweepResponse) error {
	s.daemon.Sweep(s.ctx)
	resp.Triggered = true
	return nil
}

// actionResult folds an orchestrator outcome into the RPC response. The
// current status is always disclosed, including on rejection, so callers can
// resynchronize.
func actionResult(rec *record.Record, err error, resp *ActionResponse, message string) error {
	if rec != nil {
		resp.Status = string(rec.Status)
	}
	if err != nil {
		resp.Message = err.Error()
		return err
	}
	resp.Message = message
	return nil
}
