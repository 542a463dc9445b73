package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"skelrec/internal/api"
	"skelrec/internal/capture"
	"skelrec/internal/catalog"
	"skelrec/internal/config"
	"skelrec/internal/logging"
	"skelrec/internal/notifications"
	"skelrec/internal/preflight"
	"skelrec/internal/recording"
	"skelrec/internal/sensor"
)

var (
	// ErrNotRunning is returned by recording control before Start.
	ErrNotRunning = errors.New("daemon not running")
	// ErrSensorUnavailable is returned by StartRecording while the sensor
	// is unavailable and availability is not being ignored.
	ErrSensorUnavailable = errors.New("sensor unavailable")
)

// frameErrorInterval bounds how often repeated frame errors are logged.
const frameErrorInterval = 5 * time.Second

// Daemon owns the sensor session, frame processor, recording writer and
// catalog, and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *catalog.Store
	session *sensor.Session
	writer  *recording.Writer
	notify  notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	wg      sync.WaitGroup

	// mu guards the fields below. It is never held while calling into the
	// processor, whose write path can call back into the daemon.
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	processor *capture.Processor
	active    *activeSession
	// stopping is the session StopRecording detached and is closing
	// outside mu.
	stopping  *activeSession
	preflight []preflight.Result
	api       *apiServer
	frameLog  throttle
}

type activeSession struct {
	id        string
	path      string
	startedAt time.Time
	external  bool
	logger    *slog.Logger
}

// New constructs a daemon around device and store. Nothing is opened until
// Start.
func New(cfg *config.Config, logger *slog.Logger, device sensor.Device, store *catalog.Store) (*Daemon, error) {
	if cfg == nil || device == nil || store == nil {
		return nil, errors.New("daemon requires config, sensor device, and catalog")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	writer, err := recording.NewWriter(cfg.Recording.LineEnding)
	if err != nil {
		return nil, fmt.Errorf("recording writer: %w", err)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		session:  sensor.NewSession(device, logger),
		writer:   writer,
		notify:   notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		frameLog: throttle{interval: frameErrorInterval},
	}
	writer.OnFailure(d.handleWriteFailure)
	d.session.OnFrameError(d.handleFrameError)
	d.session.OnAvailabilityChanged(d.handleAvailability)
	return d, nil
}

// Start acquires the daemon lock, opens the sensor session and begins frame
// dispatch. A sensor that cannot be opened does not fail Start; the daemon
// runs with the sensor unavailable.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another skelrec daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.session.Open(runCtx)
	processor := capture.NewProcessor(d.session.Mapper(), d.writer)

	srv, err := startAPIServer(runCtx, d.cfg.API.Bind, d.cfg.API.Token, d, d.logger)
	if err != nil {
		cancel()
		_ = d.session.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	results := preflight.RunAll(runCtx, d.cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "recordings may fail until resolved"),
		)
	}

	d.mu.Lock()
	d.ctx = runCtx
	d.cancel = cancel
	d.processor = processor
	d.preflight = results
	d.api = srv
	d.mu.Unlock()

	d.wg.Add(1)
	go d.dispatch(runCtx, processor)

	d.running.Store(true)
	d.logger.Info("skelrec daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldDevice, d.session.DeviceName()),
		logging.Bool("sensor_available", d.session.Available()),
	)
	return nil
}

func (d *Daemon) dispatch(ctx context.Context, processor *capture.Processor) {
	defer d.wg.Done()
	err := d.session.Run(ctx, func(_ context.Context, ref sensor.FrameReference) error {
		return processor.ProcessFrame(ref)
	})
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, sensor.ErrReaderClosed):
		d.logger.Debug("frame dispatch ended", logging.Error(err))
	default:
		logging.WarnWithContext(d.logger, "frame dispatch stopped", "dispatch_stopped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the sensor connection and restart the daemon"),
			logging.String(logging.FieldImpact, "no frames will be processed"),
		)
	}
}

// Stop finalizes any active recording, closes the sensor and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	if _, err := d.StopRecording(context.Background()); err != nil && !errors.Is(err, recording.ErrNotRecording) {
		logging.WarnWithContext(d.logger, "failed to finalize recording on shutdown", "recording_stop_failed",
			logging.Error(err),
		)
	}

	d.mu.Lock()
	cancel := d.cancel
	srv := d.api
	d.cancel = nil
	d.ctx = nil
	d.api = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := d.session.Close(); err != nil {
		d.logger.Warn("sensor close failed", logging.Error(err))
	}
	d.wg.Wait()
	srv.stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("skelrec daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the catalog.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// SensorAvailable reports the session availability signal.
func (d *Daemon) SensorAvailable() bool {
	return d.session.Available()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	d.mu.Lock()
	processor := d.processor
	active := d.active
	results := d.preflight
	d.mu.Unlock()

	status := api.DaemonStatus{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		Device:          d.session.DeviceName(),
		SensorAvailable: d.session.Available(),
		CatalogPath:     d.store.Path(),
		LockFilePath:    d.lockPath,
		PlaybackDir:     d.cfg.Paths.PlaybackDir,
		Preflight:       api.FromPreflight(results),
	}
	if processor != nil {
		status.Processor = api.FromStats(processor.Stats())
	}
	status.Processor.Dropped = d.session.DroppedFrames()
	if active != nil && d.writer.IsRecording() {
		status.Recording = &api.ActiveSession{
			ID:        active.id,
			Path:      active.path,
			Lines:     d.writer.LinesWritten(),
			StartedAt: api.FormatTime(active.startedAt),
			External:  active.external,
		}
	}
	return status
}

// Snapshot returns the most recently published body.
func (d *Daemon) Snapshot() api.Snapshot {
	d.mu.Lock()
	processor := d.processor
	d.mu.Unlock()
	if processor == nil {
		return api.Snapshot{}
	}
	return api.FromPublished(processor.Latest())
}

// Recordings lists catalog entries, newest first. limit <= 0 lists all.
func (d *Daemon) Recordings(ctx context.Context, limit int) ([]api.Recording, error) {
	entries, err := d.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return api.FromEntries(entries, time.Now()), nil
}

func (d *Daemon) handleFrameError(err error) {
	d.mu.Lock()
	emit, suppressed := d.frameLog.allow(time.Now())
	d.mu.Unlock()
	if !emit {
		return
	}
	logging.WarnWithContext(d.logger, "frame processing failed", "frame_failed",
		logging.Error(err),
		logging.Int("suppressed", suppressed),
		logging.String(logging.FieldImpact, "frame dropped"),
	)
}

// throttle lets one event through per interval and counts the rest.
type throttle struct {
	interval   time.Duration
	last       time.Time
	suppressed int
}

func (t *throttle) allow(now time.Time) (bool, int) {
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.suppressed++
		return false, 0
	}
	n := t.suppressed
	t.last = now
	t.suppressed = 0
	return true, n
}
