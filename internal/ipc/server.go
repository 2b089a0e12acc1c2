package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"github.com/google/uuid"

	"hopper/internal/daemon"
	"hopper/internal/logging"
	"hopper/internal/scheduler"
)

const serviceName = "Hopper"

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

// NewServer configures the IPC server at the given socket path. A stale
// socket file left by a crashed daemon is replaced.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
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

// Serve starts accepting RPC connections until Close.
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
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
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse the CLI"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// requestLogger tags the records of one mutating call with a fresh request id.
func (s *service) requestLogger() *slog.Logger {
	return logging.WithContext(logging.WithRequestID(s.ctx, uuid.NewString()), s.logger)
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	logger := s.requestLogger()
	logger.Debug("processing start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "processing started"
	logger.Info("processing started via IPC",
		logging.String(logging.FieldEventType, "processing_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	logger := s.requestLogger()
	logger.Debug("processing stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	logger.Info("processing stopped via IPC",
		logging.String(logging.FieldEventType, "processing_stop"))
	return nil
}

func (s *service) RunOnce(_ RunOnceRequest, resp *RunOnceResponse) error {
	report, err := s.daemon.RunOnce(s.ctx)
	if err != nil {
		return err
	}
	resp.Batch = convertBatch(report)
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Processed = status.Counters.Processed
	resp.Valid = status.Counters.Valid
	resp.Failed = status.Counters.Failed
	resp.InFlight = status.Counters.InFlight
	resp.HistorySize = status.Counters.HistorySize
	resp.History = status.Counters.History
	resp.Batches = status.Scheduler.Batches
	resp.LastError = status.Scheduler.LastError
	if status.Scheduler.Batches > 0 {
		batch := convertBatch(status.Scheduler.LastBatch)
		resp.LastBatch = &batch
	}
	resp.Preflight = make([]CheckResult, 0, len(status.Preflight))
	for _, check := range status.Preflight {
		resp.Preflight = append(resp.Preflight, CheckResult{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	resp.InputDir = status.Policy.InputDir
	resp.ConfigPath = status.ConfigPath
	resp.LockPath = status.LockPath
	resp.LogPath = status.LogPath
	resp.HistoryPath = status.HistoryPath
	resp.CatalogPath = status.CatalogPath
	resp.MetricsAddr = status.MetricsAddr
	return nil
}

func (s *service) History(_ HistoryRequest, resp *HistoryResponse) error {
	resp.Lines = s.daemon.History()
	return nil
}

func (s *service) Set(req SetRequest, resp *SetResponse) error {
	logger := s.requestLogger()
	change, err := s.daemon.Set(req.Key, req.Value)
	if err != nil {
		logger.Debug("setting rejected", logging.String("key", req.Key), logging.Error(err))
		return err
	}
	logger.Debug("setting applied via IPC", logging.String("key", change.Key))
	resp.Key = change.Key
	resp.Previous = change.Previous
	resp.Current = change.Current
	return nil
}

func (s *service) Config(_ ConfigRequest, resp *ConfigResponse) error {
	cfg := s.daemon.Config()
	resp.InputDir = cfg.Paths.InputDir
	resp.OutputDir = cfg.Paths.OutputDir
	resp.FailedDir = cfg.Paths.FailedDir
	resp.ArchiveDir = cfg.Paths.ArchiveDir
	resp.LogDir = cfg.Paths.LogDir
	resp.MaxFileSizeMB = cfg.Validation.MaxFileSizeMB
	resp.AllowedExtensions = cfg.Validation.AllowedExtensions
	resp.HistorySize = cfg.Workflow.HistorySize
	resp.PollInterval = cfg.Workflow.PollInterval
	resp.HistoryFile = cfg.Logging.HistoryFile
	resp.ErrorFile = cfg.Logging.ErrorFile
	return nil
}

func (s *service) CatalogList(req CatalogListRequest, resp *CatalogListResponse) error {
	records, err := s.daemon.CatalogRecent(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	totals, err := s.daemon.CatalogStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Records = make([]CatalogRecord, 0, len(records))
	for _, rec := range records {
		resp.Records = append(resp.Records, CatalogRecord{
			ID:          rec.ID,
			BatchID:     rec.BatchID,
			File:        rec.File,
			Outcome:     rec.Outcome.String(),
			Reason:      rec.Reason,
			Checksum:    rec.Checksum,
			Size:        rec.Size,
			ProcessedAt: rec.ProcessedAt,
		})
	}
	resp.Totals = make(map[string]int, len(totals))
	for outcome, count := range totals {
		resp.Totals[outcome.String()] = count
	}
	return nil
}

func convertBatch(report scheduler.BatchReport) BatchSummary {
	return BatchSummary{
		ID:         report.ID,
		Started:    report.Started,
		Duration:   report.Duration,
		Files:      report.Files,
		Valid:      report.Valid,
		Invalid:    report.Invalid,
		Unresolved: report.Unresolved,
	}
}
