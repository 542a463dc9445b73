package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"skelrec/internal/logging"
	"skelrec/internal/notifications"
	"skelrec/internal/preflight"
	"skelrec/internal/recording"
)

// StartOptions adjusts StartRecording.
type StartOptions struct {
	// IgnoreAvailability arms the writer even while the sensor reports
	// unavailable, for frames replayed by an external capture tool.
	IgnoreAvailability bool
}

// RecordingResult identifies a started or stopped recording.
type RecordingResult struct {
	ID    string
	Path  string
	Lines uint64
}

// StartRecording arms the writer on path, creating or truncating it, and
// records a catalog entry.
func (d *Daemon) StartRecording(ctx context.Context, path string, opts StartOptions) (RecordingResult, error) {
	if !d.running.Load() {
		return RecordingResult{}, ErrNotRunning
	}
	if !opts.IgnoreAvailability && !d.session.Available() {
		return RecordingResult{}, ErrSensorUnavailable
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return RecordingResult{}, errors.New("recording path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return RecordingResult{}, fmt.Errorf("resolve recording path: %w", err)
	}
	if err := preflight.CheckRecordingTarget(abs, d.cfg.Recording.MinFreeMiB); err != nil {
		return RecordingResult{}, fmt.Errorf("recording target: %w", err)
	}

	d.mu.Lock()
	result, err := d.beginLocked(ctx, abs, opts.IgnoreAvailability)
	d.mu.Unlock()
	if err != nil {
		return RecordingResult{}, err
	}
	d.publish(notifications.EventRecordingStarted, notifications.Payload{
		"path":     abs,
		"external": opts.IgnoreAvailability,
	})
	return result, nil
}

// beginLocked arms the writer and catalogues the recording. d.mu is held.
func (d *Daemon) beginLocked(ctx context.Context, abs string, external bool) (RecordingResult, error) {
	if d.active != nil {
		return RecordingResult{}, fmt.Errorf("start %s: %w (writing %s)", abs, recording.ErrAlreadyRecording, d.active.path)
	}
	if err := d.writer.StartRecording(abs); err != nil {
		return RecordingResult{}, err
	}

	session := &activeSession{path: abs, startedAt: time.Now(), external: external, logger: d.logger}
	entry, err := d.store.Begin(ctx, abs, d.session.DeviceName(), external)
	if err != nil {
		logging.WarnWithContext(d.logger, "recording not added to catalog", "catalog_begin_failed",
			logging.Error(err),
			logging.String(logging.FieldRecordingPath, abs),
			logging.String(logging.FieldImpact, "the recording will not appear in listings"),
		)
	} else {
		session.id = entry.ID
		session.startedAt = entry.StartedAt
		session.logger = logging.WithContext(logging.WithSessionID(ctx, entry.ID), d.logger)
	}
	d.active = session

	session.logger.Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
		logging.String(logging.FieldRecordingPath, abs),
		logging.Bool("external", session.external),
	)
	return RecordingResult{ID: session.id, Path: abs}, nil
}

// StopRecording closes the active recording. It returns
// recording.ErrNotRecording while idle. The file is closed without holding
// d.mu so status queries are not blocked by a slow disk.
func (d *Daemon) StopRecording(ctx context.Context) (RecordingResult, error) {
	d.mu.Lock()
	session := d.active
	if session == nil {
		d.mu.Unlock()
		return RecordingResult{}, recording.ErrNotRecording
	}
	d.active = nil
	d.stopping = session
	d.mu.Unlock()

	summary, err := d.writer.StopRecording()
	if errors.Is(err, recording.ErrNotRecording) {
		// The writer failed concurrently; handleWriteFailure owns the entry.
		return RecordingResult{}, err
	}
	d.mu.Lock()
	if d.stopping == session {
		d.stopping = nil
	}
	d.mu.Unlock()

	result := RecordingResult{ID: session.id, Path: summary.Path, Lines: summary.Lines}
	failure := ""
	if err != nil {
		failure = err.Error()
	}
	d.finishEntry(ctx, session, summary, failure)
	if err != nil {
		d.publish(notifications.EventRecordingFailed, notifications.Payload{"path": summary.Path, "error": failure})
		return result, err
	}

	session.logger.Info("recording saved",
		logging.String(logging.FieldEventType, "recording_saved"),
		logging.String(logging.FieldRecordingPath, summary.Path),
		logging.Uint64("lines", summary.Lines),
		logging.Duration("duration", summary.StoppedAt.Sub(summary.StartedAt)),
	)
	d.publish(notifications.EventRecordingSaved, notifications.Payload{"path": summary.Path, "lines": summary.Lines})
	return result, nil
}

// IsRecording reports whether the writer is armed.
func (d *Daemon) IsRecording() bool {
	return d.writer.IsRecording()
}

// RecordingPath returns the playback file for stem. An empty stem yields
// recording_<n>.txt, where n is the number of catalogued recordings.
func (d *Daemon) RecordingPath(ctx context.Context, stem string) (string, error) {
	stem = strings.TrimSpace(stem)
	if stem == "" {
		n, err := d.store.Count(ctx)
		if err != nil {
			return "", fmt.Errorf("count recordings: %w", err)
		}
		stem = fmt.Sprintf("recording_%d", n)
	}
	if strings.ContainsAny(stem, `/\`) || stem == "." || stem == ".." {
		return "", fmt.Errorf("invalid recording name %q", stem)
	}
	return filepath.Join(d.cfg.Paths.PlaybackDir, stem+".txt"), nil
}

func (d *Daemon) handleWriteFailure(summary recording.Summary, err error) {
	d.mu.Lock()
	var session *activeSession
	switch {
	case d.stopping != nil && d.stopping.path == summary.Path:
		session, d.stopping = d.stopping, nil
	case d.active != nil && d.active.path == summary.Path:
		session, d.active = d.active, nil
	}
	d.mu.Unlock()
	if session == nil {
		return
	}

	logging.WarnWithContext(session.logger, "recording failed; writer disarmed", "recording_failed",
		logging.Error(err),
		logging.String(logging.FieldRecordingPath, summary.Path),
		logging.Uint64("lines", summary.Lines),
		logging.String(logging.FieldErrorHint, "check free space and permissions on the playback directory"),
		logging.String(logging.FieldImpact, "frames are no longer recorded"),
	)
	d.finishEntry(context.Background(), session, summary, err.Error())
	d.publish(notifications.EventRecordingFailed, notifications.Payload{"path": summary.Path, "error": err.Error()})
}

func (d *Daemon) finishEntry(ctx context.Context, session *activeSession, summary recording.Summary, failure string) {
	if session.id == "" {
		return
	}
	if err := d.store.Finish(ctx, session.id, summary.Lines, summary.StoppedAt, failure); err != nil {
		logging.WarnWithContext(session.logger, "catalog update failed", "catalog_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the listing shows a stale status"),
		)
	}
}
