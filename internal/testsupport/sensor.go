package testsupport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"skelrec/internal/sensor"
	"skelrec/internal/skeleton"
)

// FakeDevice is a scriptable sensor.Device. Frames are pushed through the
// reader returned by Reader.
type FakeDevice struct {
	OpenErr   error
	ReaderErr error
	// AvailableOnOpen is the availability reported once Open succeeds.
	AvailableOnOpen bool

	mapper sensor.CoordinateMapper
	reader *FakeReader

	available atomic.Bool
	opens     atomic.Int32
	closes    atomic.Int32

	mu        sync.Mutex
	listeners []func(bool)
}

// NewFakeDevice returns a device that becomes available on Open and maps
// points with a RatioMapper.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		AvailableOnOpen: true,
		mapper:          &RatioMapper{},
		reader:          NewFakeReader(),
	}
}

// WithMapper replaces the coordinate mapper handed to sessions.
func (d *FakeDevice) WithMapper(m sensor.CoordinateMapper) *FakeDevice {
	d.mapper = m
	return d
}

func (d *FakeDevice) Name() string { return "fake" }

func (d *FakeDevice) Open(context.Context) error {
	d.opens.Add(1)
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.SetAvailable(d.AvailableOnOpen)
	return nil
}

func (d *FakeDevice) Close() error {
	d.closes.Add(1)
	_ = d.reader.Close()
	d.SetAvailable(false)
	return nil
}

func (d *FakeDevice) IsAvailable() bool { return d.available.Load() }

func (d *FakeDevice) OnAvailabilityChanged(fn func(bool)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *FakeDevice) CoordinateMapper() sensor.CoordinateMapper { return d.mapper }

func (d *FakeDevice) OpenBodyReader() (sensor.BodyFrameReader, error) {
	if d.ReaderErr != nil {
		return nil, d.ReaderErr
	}
	return d.reader, nil
}

// Reader returns the device's frame reader.
func (d *FakeDevice) Reader() *FakeReader { return d.reader }

// Opens reports how many times Open was called.
func (d *FakeDevice) Opens() int { return int(d.opens.Load()) }

// Closes reports how many times Close was called.
func (d *FakeDevice) Closes() int { return int(d.closes.Load()) }

// SetAvailable flips availability and notifies listeners on change.
func (d *FakeDevice) SetAvailable(v bool) {
	if d.available.Swap(v) == v {
		return
	}
	d.mu.Lock()
	listeners := append([]func(bool){}, d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}

// FakeReader delivers pushed frame references in order.
type FakeReader struct {
	ch     chan sensor.FrameReference
	once   sync.Once
	closed atomic.Bool
}

// NewFakeReader returns a reader with room for 64 pending arrivals.
func NewFakeReader() *FakeReader {
	return &FakeReader{ch: make(chan sensor.FrameReference, 64)}
}

func (r *FakeReader) Arrivals() <-chan sensor.FrameReference { return r.ch }

func (r *FakeReader) Close() error {
	r.once.Do(func() {
		r.closed.Store(true)
		close(r.ch)
	})
	return nil
}

// Push queues a frame holding bodies and returns its reference.
func (r *FakeReader) Push(bodies ...skeleton.Body) *FakeFrameRef {
	ref := NewFrameRef(bodies...)
	if !r.closed.Load() {
		r.ch <- ref
	}
	return ref
}

// PushEmpty queues a reference whose frame has already expired.
func (r *FakeReader) PushEmpty() *FakeFrameRef {
	ref := &FakeFrameRef{Expired: true}
	if !r.closed.Load() {
		r.ch <- ref
	}
	return ref
}

// FakeFrameRef hands out a single FakeFrame.
type FakeFrameRef struct {
	Expired bool
	Frame   *FakeFrame
}

// NewFrameRef builds a reference to a frame holding bodies.
func NewFrameRef(bodies ...skeleton.Body) *FakeFrameRef {
	return &FakeFrameRef{Frame: &FakeFrame{Bodies: bodies}}
}

func (r *FakeFrameRef) AcquireFrame() (sensor.BodyFrame, bool) {
	if r.Expired || r.Frame == nil {
		return nil, false
	}
	return r.Frame, true
}

// FakeFrame is a body frame with fixed contents.
type FakeFrame struct {
	Bodies     []skeleton.Body
	RefreshErr error
	closes     atomic.Int32
}

func (f *FakeFrame) BodyCount() int { return len(f.Bodies) }

func (f *FakeFrame) GetAndRefreshBodyData(bodies []skeleton.Body) error {
	if f.RefreshErr != nil {
		return f.RefreshErr
	}
	if len(bodies) != len(f.Bodies) {
		return errors.New("body slot count mismatch")
	}
	copy(bodies, f.Bodies)
	return nil
}

func (f *FakeFrame) Close() error {
	f.closes.Add(1)
	return nil
}

// Closed reports whether Close was called at least once.
func (f *FakeFrame) Closed() bool { return f.closes.Load() > 0 }

// RatioMapper projects a point to (X/Z, Y/Z) and remembers every input.
type RatioMapper struct {
	mu   sync.Mutex
	seen []skeleton.CameraSpacePoint
}

func (m *RatioMapper) MapCameraPointToDepthSpace(p skeleton.CameraSpacePoint) (skeleton.DepthSpacePoint, error) {
	m.mu.Lock()
	m.seen = append(m.seen, p)
	m.mu.Unlock()
	return skeleton.DepthSpacePoint{X: p.X / p.Z, Y: p.Y / p.Z}, nil
}

// Seen returns the points passed to the mapper so far.
func (m *RatioMapper) Seen() []skeleton.CameraSpacePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]skeleton.CameraSpacePoint(nil), m.seen...)
}

// FailingMapper rejects every projection with Err.
type FailingMapper struct {
	Err error
}

func (m FailingMapper) MapCameraPointToDepthSpace(skeleton.CameraSpacePoint) (skeleton.DepthSpacePoint, error) {
	return skeleton.DepthSpacePoint{}, m.Err
}

// TrackedBody returns a tracked body whose joints sit at (x, y, z) offset
// by the joint index along X.
func TrackedBody(id uint64, x, y, z float32) skeleton.Body {
	snap := skeleton.NewJointSnapshot()
	for _, jt := range skeleton.AllJointTypes() {
		snap.Set(skeleton.Joint{
			Type:          jt,
			Position:      skeleton.CameraSpacePoint{X: x + float32(jt)*0.01, Y: y, Z: z},
			TrackingState: skeleton.Tracked,
		})
	}
	return skeleton.Body{TrackingID: id, IsTracked: true, Joints: snap}
}

// UntrackedBody returns an empty body slot.
func UntrackedBody() skeleton.Body {
	return skeleton.Body{Joints: skeleton.NewJointSnapshot()}
}
