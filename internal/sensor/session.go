package sensor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"skelrec/internal/logging"
)

// FrameHandler processes one frame arrival. Calls are never concurrent.
type FrameHandler func(ctx context.Context, ref FrameReference) error

// Session owns the connection to a sensor device and dispatches frame
// arrivals to a single consumer.
type Session struct {
	device Device
	logger *slog.Logger

	available atomic.Bool
	opened    atomic.Bool

	mu        sync.Mutex
	mapper    CoordinateMapper
	reader    BodyFrameReader
	listeners []func(bool)
	onError   func(error)
}

// NewSession wraps device. Nothing is opened until Open.
func NewSession(device Device, logger *slog.Logger) *Session {
	return &Session{
		device: device,
		logger: logging.NewComponentLogger(logger, "sensor"),
	}
}

// Open acquires the device, its coordinate mapper and a body frame reader.
// Failures leave the session unavailable; they are logged, not returned.
func (s *Session) Open(ctx context.Context) {
	if s == nil || s.device == nil {
		return
	}
	if !s.opened.CompareAndSwap(false, true) {
		return
	}

	s.device.OnAvailabilityChanged(s.setAvailable)

	if err := s.device.Open(ctx); err != nil {
		logging.WarnWithContext(s.logger, "sensor open failed; session unavailable", "sensor_open_failed",
			logging.Error(err),
			logging.String(logging.FieldDevice, s.device.Name()),
			logging.String(logging.FieldErrorHint, "check the sensor connection or driver configuration"),
			logging.String(logging.FieldImpact, "no frames will be recorded until the device appears"),
		)
		s.setAvailable(false)
		return
	}

	reader, err := s.device.OpenBodyReader()
	if err != nil {
		logging.WarnWithContext(s.logger, "body frame reader unavailable", "sensor_reader_failed",
			logging.Error(err),
			logging.String(logging.FieldDevice, s.device.Name()),
			logging.String(logging.FieldImpact, "no frames will be delivered"),
		)
		s.setAvailable(false)
		return
	}

	s.mu.Lock()
	s.mapper = s.device.CoordinateMapper()
	s.reader = reader
	s.mu.Unlock()

	s.setAvailable(s.device.IsAvailable())
	s.logger.Info("sensor session opened",
		logging.String(logging.FieldEventType, "sensor_opened"),
		logging.String(logging.FieldDevice, s.device.Name()),
		logging.Bool("available", s.Available()),
	)
}

// Available reports the last availability signal from the device.
func (s *Session) Available() bool {
	if s == nil {
		return false
	}
	return s.available.Load()
}

// DeviceName returns the driver name.
func (s *Session) DeviceName() string {
	if s == nil || s.device == nil {
		return ""
	}
	return s.device.Name()
}

// OnAvailabilityChanged registers fn for availability transitions.
func (s *Session) OnAvailabilityChanged(fn func(available bool)) {
	if s == nil || fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// OnFrameError registers the callback receiving handler errors from Run.
func (s *Session) OnFrameError(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// DroppedFrames reports arrivals the reader discarded because the previous
// one had not been consumed yet. Readers that do not count drops report 0.
func (s *Session) DroppedFrames() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if counter, ok := reader.(interface{ Drops() uint64 }); ok {
		return counter.Drops()
	}
	return 0
}

// Mapper returns the coordinate mapper acquired by Open, or nil.
func (s *Session) Mapper() CoordinateMapper {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapper
}

// Run drains frame arrivals and calls handler for each, one at a time, until
// ctx is cancelled or the reader is closed. Handler errors go to the
// OnFrameError callback and dispatch continues with the next arrival.
func (s *Session) Run(ctx context.Context, handler FrameHandler) error {
	if s == nil || handler == nil {
		return errors.New("sensor session requires a frame handler")
	}
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return ErrDeviceUnavailable
	}

	arrivals := reader.Arrivals()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ref, ok := <-arrivals:
			if !ok {
				return ErrReaderClosed
			}
			if err := handler(ctx, ref); err != nil {
				s.reportError(err)
			}
		}
	}
}

// Close releases the reader and device.
func (s *Session) Close() error {
	if s == nil || !s.opened.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	reader := s.reader
	s.reader = nil
	s.mapper = nil
	s.mu.Unlock()

	var errs []error
	if reader != nil {
		errs = append(errs, reader.Close())
	}
	errs = append(errs, s.device.Close())
	s.setAvailable(false)
	return errors.Join(errs...)
}

func (s *Session) setAvailable(available bool) {
	if s.available.Swap(available) == available {
		return
	}
	s.logger.Info("sensor availability changed",
		logging.String(logging.FieldEventType, "sensor_availability_changed"),
		logging.String(logging.FieldDevice, s.device.Name()),
		logging.Bool("available", available),
	)
	s.mu.Lock()
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(available)
	}
}

func (s *Session) reportError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
		return
	}
	logging.WarnWithContext(s.logger, "frame processing failed", "frame_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "frame dropped"),
	)
}
