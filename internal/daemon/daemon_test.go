package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skelrec/internal/catalog"
	"skelrec/internal/daemon"
	"skelrec/internal/logging"
	"skelrec/internal/recording"
	"skelrec/internal/skeleton"
	"skelrec/internal/testsupport"
)

func newDaemon(t *testing.T, device *testsupport.FakeDevice, opts ...testsupport.ConfigOption) (*daemon.Daemon, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenCatalog(t, cfg)
	d, err := daemon.New(cfg, logging.NewNop(), device, store)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, store
}

func startDaemon(t *testing.T, device *testsupport.FakeDevice, opts ...testsupport.ConfigOption) (*daemon.Daemon, *catalog.Store) {
	t.Helper()
	d, store := newDaemon(t, device, opts...)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d, store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	device := testsupport.NewFakeDevice()
	d, _ := newDaemon(t, device)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || !status.SensorAvailable {
		t.Fatalf("expected running daemon with available sensor, got %+v", status)
	}
	if status.Device != "fake" {
		t.Fatalf("unexpected device %q", status.Device)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.SensorAvailable {
		t.Fatalf("expected stopped daemon, got %+v", status)
	}
	if device.Closes() != 1 {
		t.Fatalf("expected device closed once, got %d", device.Closes())
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	first, err := daemon.New(cfg, logging.NewNop(), testsupport.NewFakeDevice(), store)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, logging.NewNop(), testsupport.NewFakeDevice(), store)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestRecordingLifecycle(t *testing.T) {
	device := testsupport.NewFakeDevice()
	d, _ := startDaemon(t, device)
	ctx := context.Background()

	path, err := d.RecordingPath(ctx, "take")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	started, err := d.StartRecording(ctx, path, daemon.StartOptions{})
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if started.ID == "" || filepath.Base(started.Path) != "take.txt" {
		t.Fatalf("unexpected start result %+v", started)
	}
	if !d.IsRecording() {
		t.Fatal("expected daemon to be recording")
	}

	for i := 0; i < 3; i++ {
		device.Reader().Push(testsupport.TrackedBody(7, 0.1, 0.2, 2), testsupport.UntrackedBody())
	}
	waitFor(t, "three recorded lines", func() bool {
		status := d.Status(ctx)
		return status.Recording != nil && status.Recording.Lines == 3
	})

	stopped, err := d.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if stopped.Lines != 3 || stopped.ID != started.ID {
		t.Fatalf("unexpected stop result %+v", stopped)
	}
	if d.IsRecording() {
		t.Fatal("expected writer disarmed")
	}

	data, err := os.ReadFile(started.Path)
	if err != nil {
		t.Fatalf("read playback: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if fields := strings.Fields(lines[0]); len(fields) != skeleton.JointCount*recording.FieldsPerJoint {
		t.Fatalf("expected %d fields, got %d", skeleton.JointCount*recording.FieldsPerJoint, len(fields))
	}

	recs, err := d.Recordings(ctx, 10)
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != string(catalog.StatusCompleted) || recs[0].Lines != 3 {
		t.Fatalf("unexpected catalog listing %+v", recs)
	}

	snap := d.Snapshot()
	if !snap.Available || snap.TrackingID != 7 || len(snap.Joints) != skeleton.JointCount {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRecordingUsesConfiguredLineEndingAndClampedProjection(t *testing.T) {
	mapper := &testsupport.RatioMapper{}
	device := testsupport.NewFakeDevice().WithMapper(mapper)
	d, _ := startDaemon(t, device, testsupport.WithLineEnding(recording.LineEndingCRLF))
	ctx := context.Background()
	if device.Opens() != 1 {
		t.Fatalf("device opened %d times", device.Opens())
	}

	path, err := d.RecordingPath(ctx, "crlf")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	if _, err := d.StartRecording(ctx, path, daemon.StartOptions{}); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	device.Reader().PushEmpty()
	body := testsupport.TrackedBody(4, 0.2, 0.4, -1)
	device.Reader().Push(body)
	waitFor(t, "one recorded line", func() bool {
		p := d.Status(ctx).Processor
		return p.Skipped == 1 && p.LinesRecorded == 1
	})
	if _, err := d.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	seen := mapper.Seen()
	if len(seen) != skeleton.JointCount {
		t.Fatalf("mapper saw %d points, want %d", len(seen), skeleton.JointCount)
	}
	var projected skeleton.ProjectedSnapshot
	for i, p := range seen {
		if p.Z != skeleton.InferredZPositionClamp {
			t.Fatalf("joint %d projected with Z=%v, want clamped", i, p.Z)
		}
		projected[i] = skeleton.DepthSpacePoint{X: p.X / p.Z, Y: p.Y / p.Z}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read playback: %v", err)
	}
	want := recording.AppendLine(nil, &body.Joints, &projected, "\r\n")
	if string(data) != string(want) {
		t.Fatalf("playback mismatch:\n got %q\nwant %q", data, want)
	}
}

func TestStartRecordingRequiresAvailableSensor(t *testing.T) {
	device := testsupport.NewFakeDevice()
	device.AvailableOnOpen = false
	d, store := startDaemon(t, device)
	ctx := context.Background()

	path, err := d.RecordingPath(ctx, "")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	if _, err := d.StartRecording(ctx, path, daemon.StartOptions{}); !errors.Is(err, daemon.ErrSensorUnavailable) {
		t.Fatalf("expected ErrSensorUnavailable, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no file to be created, got %v", err)
	}

	result, err := d.StartRecording(ctx, path, daemon.StartOptions{IgnoreAvailability: true})
	if err != nil {
		t.Fatalf("StartRecording ignoring availability: %v", err)
	}
	entry, err := store.Get(ctx, result.ID)
	if err != nil || entry == nil {
		t.Fatalf("Get: %v %v", entry, err)
	}
	if !entry.External || entry.Status != catalog.StatusRecording {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestRecordingControlErrors(t *testing.T) {
	device := testsupport.NewFakeDevice()
	d, _ := newDaemon(t, device)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "early.txt")
	if _, err := d.StartRecording(ctx, path, daemon.StartOptions{}); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := d.StopRecording(ctx); !errors.Is(err, recording.ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}

	if _, err := d.StartRecording(ctx, path, daemon.StartOptions{}); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := d.StartRecording(ctx, path, daemon.StartOptions{}); !errors.Is(err, recording.ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing", "take.txt")
	if _, err := d.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if _, err := d.StartRecording(ctx, missing, daemon.StartOptions{}); err == nil {
		t.Fatal("expected missing directory to be rejected")
	}
}

func TestRecordingPathNumbersByCatalogCount(t *testing.T) {
	device := testsupport.NewFakeDevice()
	d, _ := startDaemon(t, device)
	ctx := context.Background()

	first, err := d.RecordingPath(ctx, "  ")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	if filepath.Base(first) != "recording_0.txt" {
		t.Fatalf("unexpected first path %q", first)
	}
	if _, err := d.StartRecording(ctx, first, daemon.StartOptions{}); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := d.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	second, err := d.RecordingPath(ctx, "")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	if filepath.Base(second) != "recording_1.txt" {
		t.Fatalf("unexpected second path %q", second)
	}

	for _, bad := range []string{"a/b", `a\b`, ".."} {
		if _, err := d.RecordingPath(ctx, bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestStopFinalizesActiveRecording(t *testing.T) {
	device := testsupport.NewFakeDevice()
	d, store := startDaemon(t, device)
	ctx := context.Background()

	path, err := d.RecordingPath(ctx, "shutdown")
	if err != nil {
		t.Fatalf("RecordingPath: %v", err)
	}
	result, err := d.StartRecording(ctx, path, daemon.StartOptions{})
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	d.Stop()
	if d.IsRecording() {
		t.Fatal("expected writer disarmed after Stop")
	}
	entry, err := store.Get(ctx, result.ID)
	if err != nil || entry == nil {
		t.Fatalf("Get: %v %v", entry, err)
	}
	if entry.Status != catalog.StatusCompleted || entry.StoppedAt == nil {
		t.Fatalf("expected completed entry, got %+v", entry)
	}
}

func TestDaemonSurvivesSensorOpenFailure(t *testing.T) {
	device := testsupport.NewFakeDevice()
	device.OpenErr = errors.New("usb gone")
	d, _ := startDaemon(t, device)

	status := d.Status(context.Background())
	if !status.Running || status.SensorAvailable {
		t.Fatalf("expected running daemon without sensor, got %+v", status)
	}
	if snap := d.Snapshot(); snap.Available {
		t.Fatalf("expected no snapshot, got %+v", snap)
	}
}
