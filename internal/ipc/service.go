package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"skelrec/internal/daemon"
	"skelrec/internal/logging"
)

// service is the RPC receiver. Failures a user can act on are reported in
// the response Message; only transport-level problems become RPC errors.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context

	mu       sync.Mutex
	shutdown func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger
}

func (s *service) StartRecording(req StartRecordingRequest, resp *StartRecordingResponse) error {
	s.log().Debug("start recording requested",
		logging.String("stem", req.Stem),
		logging.String("path", req.Path),
		logging.Bool("ignore_availability", req.IgnoreAvailability))

	path := req.Path
	if path == "" {
		resolved, err := s.daemon.RecordingPath(s.ctx, req.Stem)
		if err != nil {
			resp.Message = err.Error()
			return nil
		}
		path = resolved
	} else if !filepath.IsAbs(path) {
		resp.Message = fmt.Sprintf("recording path %q must be absolute", path)
		return nil
	}

	result, err := s.daemon.StartRecording(s.ctx, path, daemon.StartOptions{IgnoreAvailability: req.IgnoreAvailability})
	if err != nil {
		resp.Path = path
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.ID = result.ID
	resp.Path = result.Path
	resp.Message = "Recording..."
	return nil
}

func (s *service) StopRecording(_ StopRecordingRequest, resp *StopRecordingResponse) error {
	s.log().Debug("stop recording requested")
	result, err := s.daemon.StopRecording(s.ctx)
	resp.ID = result.ID
	resp.Path = result.Path
	resp.Lines = result.Lines
	if err != nil {
		resp.Message = err.Error()
		return nil
	}
	resp.Stopped = true
	resp.Message = "Recording saved as " + filepath.Base(result.Path)
	return nil
}

func (s *service) IsRecording(_ IsRecordingRequest, resp *IsRecordingResponse) error {
	resp.Recording = s.daemon.IsRecording()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Snapshot(_ SnapshotRequest, resp *SnapshotResponse) error {
	*resp = s.daemon.Snapshot()
	return nil
}

func (s *service) Recordings(req RecordingsRequest, resp *RecordingsResponse) error {
	recordings, err := s.daemon.Recordings(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Recordings = recordings
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.mu.Lock()
	fn := s.shutdown
	s.mu.Unlock()
	if fn == nil {
		return errors.New("shutdown not supported by this daemon")
	}
	s.log().Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
	resp.Accepted = true
	go fn()
	return nil
}
