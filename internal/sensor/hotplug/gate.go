package hotplug

import (
	"context"
	"sync"
	"sync/atomic"

	"skelrec/internal/sensor"
)

// Presence reports whether the physical sensor is attached.
type Presence interface {
	Start(ctx context.Context) error
	Stop()
	Present() bool
	OnChange(fn func(present bool))
}

// Gate wraps a device so that it is only available while the sensor is
// physically attached.
type Gate struct {
	inner    sensor.Device
	presence Presence

	available atomic.Bool
	mu        sync.Mutex
	listeners []func(bool)
	wired     bool
}

// NewGate combines inner with presence.
func NewGate(inner sensor.Device, presence Presence) *Gate {
	return &Gate{inner: inner, presence: presence}
}

func (g *Gate) Name() string { return g.inner.Name() + "+usb" }

// Open starts presence tracking before opening the inner device.
func (g *Gate) Open(ctx context.Context) error {
	g.mu.Lock()
	if !g.wired {
		g.wired = true
		g.inner.OnAvailabilityChanged(func(bool) { g.refresh() })
		g.presence.OnChange(func(bool) { g.refresh() })
	}
	g.mu.Unlock()

	if err := g.presence.Start(ctx); err != nil {
		return err
	}
	if err := g.inner.Open(ctx); err != nil {
		g.presence.Stop()
		return err
	}
	g.refresh()
	return nil
}

func (g *Gate) Close() error {
	g.presence.Stop()
	err := g.inner.Close()
	g.refresh()
	return err
}

func (g *Gate) IsAvailable() bool { return g.available.Load() }

func (g *Gate) OnAvailabilityChanged(fn func(bool)) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

func (g *Gate) CoordinateMapper() sensor.CoordinateMapper { return g.inner.CoordinateMapper() }

func (g *Gate) OpenBodyReader() (sensor.BodyFrameReader, error) { return g.inner.OpenBodyReader() }

func (g *Gate) refresh() {
	v := g.inner.IsAvailable() && g.presence.Present()
	if g.available.Swap(v) == v {
		return
	}
	g.mu.Lock()
	listeners := append([]func(bool){}, g.listeners...)
	g.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}
