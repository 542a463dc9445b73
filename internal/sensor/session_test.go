package sensor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skelrec/internal/logging"
	"skelrec/internal/sensor"
	"skelrec/internal/sensor/synthetic"
	"skelrec/internal/testsupport"
)

func TestSessionOpenFailureLeavesSessionUnavailable(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	dev.OpenErr = errors.New("usb: no such device")

	s := sensor.NewSession(dev, logging.NewNop())
	s.Open(context.Background())

	if s.Available() {
		t.Fatal("expected session to be unavailable")
	}
	if err := s.Run(context.Background(), func(context.Context, sensor.FrameReference) error { return nil }); !errors.Is(err, sensor.ErrDeviceUnavailable) {
		t.Fatalf("Run err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestSessionTracksAvailability(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	s := sensor.NewSession(dev, logging.NewNop())

	var mu sync.Mutex
	var seen []bool
	s.OnAvailabilityChanged(func(v bool) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	s.Open(context.Background())
	if !s.Available() {
		t.Fatal("expected session available after open")
	}
	if s.Mapper() == nil {
		t.Fatal("expected coordinate mapper after open")
	}

	dev.SetAvailable(false)
	if s.Available() {
		t.Fatal("expected availability to follow the device")
	}
	dev.SetAvailable(true)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if dev.Closes() != 1 {
		t.Fatalf("device closed %d times", dev.Closes())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, true, false}
	if len(seen) != len(want) {
		t.Fatalf("availability transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("availability transitions = %v, want %v", seen, want)
		}
	}
}

func TestSessionRunDispatchesInOrderAndReportsErrors(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	s := sensor.NewSession(dev, logging.NewNop())
	s.Open(context.Background())

	first := dev.Reader().Push(testsupport.TrackedBody(1, 0, 0, 2))
	second := dev.Reader().Push(testsupport.TrackedBody(2, 0, 0, 2))

	var errs []error
	s.OnFrameError(func(err error) { errs = append(errs, err) })

	var got []sensor.FrameReference
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), func(_ context.Context, ref sensor.FrameReference) error {
			got = append(got, ref)
			if len(got) == 1 {
				return errors.New("boom")
			}
			_ = dev.Reader().Close()
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, sensor.ErrReaderClosed) {
			t.Fatalf("Run err = %v, want ErrReaderClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("unexpected dispatch order: %v", got)
	}
	if len(errs) != 1 || errs[0].Error() != "boom" {
		t.Fatalf("reported errors = %v", errs)
	}
}

func TestSessionRunStopsOnContextCancel(t *testing.T) {
	dev := testsupport.NewFakeDevice()
	s := sensor.NewSession(dev, logging.NewNop())
	s.Open(context.Background())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx, func(context.Context, sensor.FrameReference) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
}

func TestSessionReportsDroppedFrames(t *testing.T) {
	s := sensor.NewSession(synthetic.New(synthetic.Options{FrameRate: 200, TrackedBodies: 1}), logging.NewNop())
	s.Open(context.Background())
	defer s.Close()

	// Nothing consumes arrivals, so every tick after the first displaces one.
	deadline := time.Now().Add(2 * time.Second)
	for s.DroppedFrames() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected dropped frames while no consumer runs")
		}
		time.Sleep(10 * time.Millisecond)
	}

	fake := sensor.NewSession(testsupport.NewFakeDevice(), logging.NewNop())
	fake.Open(context.Background())
	defer fake.Close()
	if fake.DroppedFrames() != 0 {
		t.Fatal("readers without a drop counter report zero")
	}
}
