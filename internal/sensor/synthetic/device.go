package synthetic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"skelrec/internal/sensor"
	"skelrec/internal/skeleton"
)

// Options configures the synthetic device.
type Options struct {
	FrameRate     int
	BodyCount     int
	TrackedBodies int
	Intrinsics    sensor.Intrinsics
}

// Device generates deterministic moving skeletons at a fixed frame rate.
// Frames that are not acquired before the next tick are lost, like a real
// sensor that only keeps the newest frame.
type Device struct {
	opts   Options
	mapper *sensor.PinholeMapper

	latest    atomic.Uint64
	available atomic.Bool

	mu        sync.Mutex
	listeners []func(bool)
	reader    *sensor.Mailbox
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a synthetic device. Zero values fall back to 30 fps, six
// body slots and one tracked body.
func New(opts Options) *Device {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	if opts.BodyCount <= 0 {
		opts.BodyCount = 6
	}
	if opts.TrackedBodies < 0 {
		opts.TrackedBodies = 0
	}
	if opts.TrackedBodies > opts.BodyCount {
		opts.TrackedBodies = opts.BodyCount
	}
	if opts.Intrinsics == (sensor.Intrinsics{}) {
		opts.Intrinsics = sensor.DefaultDepthIntrinsics
	}
	return &Device{opts: opts, mapper: sensor.NewPinholeMapper(opts.Intrinsics)}
}

func (d *Device) Name() string {
	return fmt.Sprintf("synthetic(%dfps,%d tracked)", d.opts.FrameRate, d.opts.TrackedBodies)
}

// Open starts the frame clock.
func (d *Device) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return errors.New("synthetic device already open")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.reader = sensor.NewMailbox()
	d.wg.Add(1)
	go d.clock(runCtx, d.reader)
	d.mu.Unlock()

	d.setAvailable(true)
	return nil
}

// Close stops the clock and closes any open reader.
func (d *Device) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	r := d.reader
	d.cancel = nil
	d.reader = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	if r != nil {
		_ = r.Close()
	}
	d.setAvailable(false)
	return nil
}

func (d *Device) IsAvailable() bool {
	return d.available.Load()
}

func (d *Device) OnAvailabilityChanged(fn func(bool)) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *Device) CoordinateMapper() sensor.CoordinateMapper {
	return d.mapper
}

func (d *Device) OpenBodyReader() (sensor.BodyFrameReader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reader == nil {
		return nil, sensor.ErrDeviceUnavailable
	}
	return d.reader, nil
}

func (d *Device) clock(ctx context.Context, r *sensor.Mailbox) {
	defer d.wg.Done()
	ticker := time.NewTicker(time.Second / time.Duration(d.opts.FrameRate))
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			d.latest.Store(n)
			r.Offer(&frameRef{device: d, index: n})
		}
	}
}

func (d *Device) setAvailable(available bool) {
	if d.available.Swap(available) == available {
		return
	}
	d.mu.Lock()
	listeners := append([]func(bool){}, d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(available)
	}
}

func (d *Device) frame(n uint64) *bodyFrame {
	return &bodyFrame{opts: d.opts, index: n}
}

// FrameAt returns frame n without going through the clock.
func (d *Device) FrameAt(n uint64) sensor.BodyFrame {
	return d.frame(n)
}

type frameRef struct {
	device *Device
	index  uint64
}

// AcquireFrame fails once a newer frame has been produced.
func (r *frameRef) AcquireFrame() (sensor.BodyFrame, bool) {
	if r.device.latest.Load() != r.index {
		return nil, false
	}
	return r.device.frame(r.index), true
}

type bodyFrame struct {
	opts  Options
	index uint64
}

func (f *bodyFrame) BodyCount() int { return f.opts.BodyCount }

func (f *bodyFrame) GetAndRefreshBodyData(bodies []skeleton.Body) error {
	if len(bodies) != f.opts.BodyCount {
		return fmt.Errorf("body array has %d slots, device reports %d", len(bodies), f.opts.BodyCount)
	}
	for i := range bodies {
		if i >= f.opts.TrackedBodies {
			bodies[i] = skeleton.Body{Joints: skeleton.NewJointSnapshot()}
			continue
		}
		bodies[i].TrackingID = uint64(i + 1)
		bodies[i].IsTracked = true
		bodies[i].Joints = Pose(i, f.index, f.opts.FrameRate)
	}
	return nil
}

func (f *bodyFrame) Close() error { return nil }
