package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"easel/internal/daemon"
	"easel/internal/logging"
	"easel/internal/logs"
	"easel/internal/metrics"
	"easel/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
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

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Easel", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
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
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun easel stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func wireItem(item *queue.Item) QueueItem {
	return QueueItem{
		ID:           item.ID,
		BatchID:      item.BatchID,
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
		CreatedAt:    item.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:    item.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	item, err := s.daemon.Submit(s.ctx, req.Config)
	if err != nil {
		return err
	}
	resp.ItemID = item.ID
	resp.BatchID = item.BatchID
	s.log().Info("run submitted via IPC",
		logging.String(logging.FieldEventType, "run_submit"),
		logging.String(logging.FieldBatchID, item.BatchID))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.State = string(status.State)
	resp.LastError = status.LastError
	resp.Counters = status.Counters
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockPath
	resp.QueueStats = map[string]int{
		"total":     status.Queue.Total,
		"pending":   status.Queue.Pending,
		"running":   status.Queue.Running,
		"completed": status.Queue.Completed,
		"failed":    status.Queue.Failed,
		"cancelled": status.Queue.Cancelled,
	}
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *PauseResponse) error {
	if err := s.daemon.Pause(); err != nil {
		resp.Paused = false
		resp.Message = err.Error()
		return nil
	}
	resp.Paused = true
	resp.Message = "run paused"
	s.log().Info("run paused via IPC",
		logging.String(logging.FieldEventType, "run_pause"))
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	if err := s.daemon.Resume(); err != nil {
		resp.Resumed = false
		resp.Message = err.Error()
		return nil
	}
	resp.Resumed = true
	resp.Message = "run resumed"
	s.log().Info("run resumed via IPC",
		logging.String(logging.FieldEventType, "run_resume"))
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	var err error
	if req.ID > 0 {
		err = s.daemon.CancelQueued(s.ctx, req.ID)
	} else {
		err = s.daemon.CancelActive()
	}
	if err != nil {
		resp.Cancelled = false
		resp.Message = err.Error()
		return nil
	}
	resp.Cancelled = true
	resp.Message = "cancellation requested"
	s.log().Info("run cancelled via IPC",
		logging.String(logging.FieldEventType, "run_cancel"),
		logging.Int64("item_id", req.ID))
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	resp.Events = s.daemon.EventsSince(req.Since)
	return nil
}

func (s *service) Metrics(_ MetricsRequest, resp *MetricsResponse) error {
	records, err := s.daemon.Metrics()
	if err != nil {
		return err
	}
	resp.Batches = records
	resp.Summary = metrics.Summarize(records)
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, err := queue.ParseStatus(status)
		if err != nil {
			continue
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.ListQueue(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Items = append(resp.Items, wireItem(item))
	}
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue remove requires at least one id")
	}
	for _, id := range req.IDs {
		if err := s.daemon.RemoveQueueItem(s.ctx, id); err != nil {
			return err
		}
		resp.Removed++
	}
	s.log().Info("queue items removed",
		logging.String(logging.FieldEventType, "queue_remove"),
		logging.Int64("removed_count", resp.Removed))
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	removed, err := s.daemon.ClearQueue(s.ctx, req.All)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
