package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"skelrec/internal/logging"
	"skelrec/internal/sensor"
	"skelrec/internal/skeleton"
)

const maxLineBytes = 1 << 20

// Options configures a bridge device.
type Options struct {
	// Address is tcp://host:port or unix:///path/to/socket.
	Address        string
	RedialInterval time.Duration
	BodyCount      int
	Intrinsics     sensor.Intrinsics
	Logger         *slog.Logger
}

// Device reads body frames streamed by an external sensor bridge as
// newline-delimited JSON. The device is available while the bridge
// connection is up; it redials after a disconnect.
type Device struct {
	opts    Options
	network string
	addr    string
	mapper  *sensor.PinholeMapper
	logger  *slog.Logger

	available atomic.Bool

	latestMu  sync.Mutex
	latestSeq uint64
	latest    []skeleton.Body

	mu        sync.Mutex
	listeners []func(bool)
	reader    *sensor.Mailbox
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New validates the address and constructs a bridge device.
func New(opts Options) (*Device, error) {
	network, addr, err := ParseAddress(opts.Address)
	if err != nil {
		return nil, err
	}
	if opts.RedialInterval <= 0 {
		opts.RedialInterval = 2 * time.Second
	}
	if opts.BodyCount <= 0 {
		opts.BodyCount = 6
	}
	if opts.Intrinsics == (sensor.Intrinsics{}) {
		opts.Intrinsics = sensor.DefaultDepthIntrinsics
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Device{
		opts:    opts,
		network: network,
		addr:    addr,
		mapper:  sensor.NewPinholeMapper(opts.Intrinsics),
		logger:  logging.NewComponentLogger(logger, "bridge"),
	}, nil
}

// ParseAddress splits a bridge address into a net network and address.
func ParseAddress(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "tcp://"):
		addr := strings.TrimPrefix(raw, "tcp://")
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return "", "", fmt.Errorf("bridge address %q: %w", raw, err)
		}
		return "tcp", addr, nil
	case strings.HasPrefix(raw, "unix://"):
		path := strings.TrimPrefix(raw, "unix://")
		if path == "" {
			return "", "", fmt.Errorf("bridge address %q: missing socket path", raw)
		}
		return "unix", path, nil
	case raw == "":
		return "", "", errors.New("bridge address is empty")
	default:
		return "", "", fmt.Errorf("bridge address %q: expected tcp:// or unix://", raw)
	}
}

func (d *Device) Name() string {
	return "bridge(" + d.network + ":" + d.addr + ")"
}

// Open starts the connection loop. It does not wait for the first
// connection; availability is signalled once the bridge answers.
func (d *Device) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return errors.New("bridge device already open")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.reader = sensor.NewMailbox()
	d.wg.Add(1)
	go d.connectLoop(runCtx, d.reader)
	return nil
}

// Close drops the connection and stops redialling.
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

func (d *Device) connectLoop(ctx context.Context, r *sensor.Mailbox) {
	defer d.wg.Done()
	var dialer net.Dialer
	failures := 0
	for {
		conn, err := dialer.DialContext(ctx, d.network, d.addr)
		if err == nil {
			failures = 0
			d.logger.Info("bridge connected",
				logging.String(logging.FieldEventType, "bridge_connected"),
				logging.String(logging.FieldDevice, d.Name()),
			)
			d.setAvailable(true)
			err = d.readFrames(ctx, conn, r)
			d.setAvailable(false)
			if ctx.Err() != nil {
				return
			}
			logging.WarnWithContext(d.logger, "bridge disconnected", "bridge_disconnected",
				logging.Error(err),
				logging.String(logging.FieldDevice, d.Name()),
				logging.Duration("redial_in", d.opts.RedialInterval),
				logging.String(logging.FieldImpact, "frames paused until the bridge reconnects"),
			)
		} else if ctx.Err() == nil {
			failures++
			// Only the first failure of a streak is worth a warning.
			if failures == 1 {
				logging.WarnWithContext(d.logger, "bridge dial failed", "bridge_dial_failed",
					logging.Error(err),
					logging.String(logging.FieldDevice, d.Name()),
					logging.String(logging.FieldErrorHint, "start the sensor bridge or fix sensor.bridge_address"),
				)
			} else {
				d.logger.Debug("bridge dial failed", logging.Error(err), logging.Int("attempt", failures))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.opts.RedialInterval):
		}
	}
}

func (d *Device) readFrames(ctx context.Context, conn net.Conn, r *sensor.Mailbox) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		bodies, err := DecodeFrame(line, d.opts.BodyCount)
		if err != nil {
			d.logger.Debug("bridge frame rejected", logging.Error(err))
			continue
		}
		seq := d.store(bodies)
		r.Offer(&frameRef{device: d, seq: seq})
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("bridge closed the stream")
}

func (d *Device) store(bodies []skeleton.Body) uint64 {
	d.latestMu.Lock()
	defer d.latestMu.Unlock()
	d.latestSeq++
	d.latest = bodies
	return d.latestSeq
}

func (d *Device) load(seq uint64) ([]skeleton.Body, bool) {
	d.latestMu.Lock()
	defer d.latestMu.Unlock()
	if seq != d.latestSeq {
		return nil, false
	}
	return d.latest, true
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

type frameRef struct {
	device *Device
	seq    uint64
}

// AcquireFrame fails once a newer frame has arrived from the bridge.
func (r *frameRef) AcquireFrame() (sensor.BodyFrame, bool) {
	bodies, ok := r.device.load(r.seq)
	if !ok {
		return nil, false
	}
	return &bodyFrame{bodies: bodies}, true
}

type bodyFrame struct {
	bodies []skeleton.Body
}

func (f *bodyFrame) BodyCount() int { return len(f.bodies) }

func (f *bodyFrame) GetAndRefreshBodyData(bodies []skeleton.Body) error {
	if len(bodies) != len(f.bodies) {
		return fmt.Errorf("body array has %d slots, bridge reports %d", len(bodies), len(f.bodies))
	}
	copy(bodies, f.bodies)
	return nil
}

func (f *bodyFrame) Close() error { return nil }
