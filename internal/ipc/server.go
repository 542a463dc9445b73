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
	"time"

	"skelrec/internal/daemon"
	"skelrec/internal/logging"
)

// ServiceName is the JSON-RPC service prefix.
const ServiceName = "Skelrec"

// ErrSocketInUse is returned when another daemon already answers on the
// requested socket.
var ErrSocketInUse = errors.New("ipc socket already in use")

// Server serves the daemon control API as JSON-RPC over a unix socket.
type Server struct {
	path     string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server
	svc      *service

	done     chan struct{}
	stopOnce sync.Once
	conns    sync.WaitGroup

	mu   sync.Mutex
	open map[net.Conn]struct{}
}

// NewServer binds path and registers the daemon service. The listener is
// not serviced until Serve.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	listener, err := listenUnix(path)
	if err != nil {
		return nil, err
	}

	svc := &service{daemon: d, logger: logger, ctx: ctx}
	rs := rpc.NewServer()
	if err := rs.RegisterName(ServiceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	s := &Server{
		path:     path,
		logger:   logger,
		listener: listener,
		rpc:      rs,
		svc:      svc,
		done:     make(chan struct{}),
		open:     make(map[net.Conn]struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// listenUnix replaces a stale socket file at path but refuses to take over
// one a live process is still accepting on.
func listenUnix(path string) (net.Listener, error) {
	if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrSocketInUse, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

// OnShutdown registers fn to run when a client requests shutdown. fn runs
// on its own goroutine after the response is sent.
func (s *Server) OnShutdown(fn func()) {
	s.svc.mu.Lock()
	s.svc.shutdown = fn
	s.svc.mu.Unlock()
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.conns.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.conns.Done()
	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err == nil {
			backoff = 0
			s.serveConn(conn)
			continue
		}
		if s.closed() || errors.Is(err, net.ErrClosed) {
			return
		}
		backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
		logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
			logging.Error(err),
			logging.Duration("retry_in", backoff),
			logging.String(logging.FieldImpact, "clients may fail to connect"),
			logging.String(logging.FieldErrorHint, "check socket permissions"),
		)
		select {
		case <-time.After(backoff):
		case <-s.done:
			return
		}
	}
}

func (s *Server) serveConn(conn net.Conn) {
	s.mu.Lock()
	if s.closed() {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.open[conn] = struct{}{}
	s.conns.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.conns.Done()
		s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
		s.mu.Lock()
		delete(s.open, conn)
		s.mu.Unlock()
	}()
}

func (s *Server) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close stops accepting, drops connected clients and removes the socket
// file. It is safe to call more than once.
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		for conn := range s.open {
			conn.Close()
		}
		s.mu.Unlock()
		_ = s.listener.Close()
		s.conns.Wait()
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(s.logger, "socket cleanup failed", "ipc_socket_cleanup_failed",
				logging.Error(err),
				logging.String("socket", s.path),
				logging.String(logging.FieldErrorHint, "remove the socket file before restarting"),
			)
		}
	})
}
