package capture_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skelrec/internal/capture"
	"skelrec/internal/recording"
	"skelrec/internal/sensor"
	"skelrec/internal/skeleton"
	"skelrec/internal/testsupport"
)

func newArmedWriter(t *testing.T) (*recording.Writer, string) {
	t.Helper()
	w, err := recording.NewWriter(recording.LineEndingLF)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	path := filepath.Join(t.TempDir(), "take.txt")
	if err := w.StartRecording(path); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	return w, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ratioProjection is what RatioMapper yields for joints after the
// negative-depth clamp.
func ratioProjection(joints *skeleton.JointSnapshot) skeleton.ProjectedSnapshot {
	var out skeleton.ProjectedSnapshot
	for i, j := range joints {
		z := j.Position.Z
		if z < 0 {
			z = 0.1
		}
		out[i] = skeleton.DepthSpacePoint{X: j.Position.X / z, Y: j.Position.Y / z}
	}
	return out
}

func TestProcessFrameRecordsOneLinePerFrame(t *testing.T) {
	writer, path := newArmedWriter(t)
	p := capture.NewProcessor(&testsupport.RatioMapper{}, writer)

	const frames = 7
	var want []string
	for i := 0; i < frames; i++ {
		z := float32(2)
		if i%2 == 1 {
			z = -0.5
		}
		body := testsupport.TrackedBody(3, float32(i), 0.5, z)
		ref := testsupport.NewFrameRef(
			testsupport.UntrackedBody(),
			body,
			testsupport.UntrackedBody(),
		)
		if err := p.ProcessFrame(ref); err != nil {
			t.Fatalf("ProcessFrame %d: %v", i, err)
		}
		if !ref.Frame.Closed() {
			t.Fatalf("frame %d was not released", i)
		}
		projected := ratioProjection(&body.Joints)
		line := recording.AppendLine(nil, &body.Joints, &projected, "\n")
		want = append(want, strings.TrimSuffix(string(line), "\n"))
	}
	if _, err := writer.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != frames {
		t.Fatalf("got %d lines, want %d", len(lines), frames)
	}
	for i, line := range lines {
		if line != want[i] {
			t.Fatalf("line %d:\n got %q\nwant %q", i, line, want[i])
		}
		if n := len(strings.Fields(line)); n != skeleton.JointCount*recording.FieldsPerJoint {
			t.Fatalf("line %d has %d fields", i, n)
		}
	}
	if got := p.Stats().LinesRecorded; got != frames {
		t.Fatalf("LinesRecorded = %d", got)
	}
}

func TestProcessFrameLastTrackedBodyWins(t *testing.T) {
	writer, path := newArmedWriter(t)
	p := capture.NewProcessor(&testsupport.RatioMapper{}, writer)

	first := testsupport.TrackedBody(1, 0, 0, 2)
	second := testsupport.TrackedBody(2, 1, 1, 3)
	if err := p.ProcessFrame(testsupport.NewFrameRef(first, testsupport.UntrackedBody(), second)); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	_, _ = writer.StopRecording()

	latest, ok := p.Latest()
	if !ok {
		t.Fatal("expected a published body")
	}
	if latest.TrackingID != 2 || latest.Joints != second.Joints {
		t.Fatalf("published body %d, want the last tracked body", latest.TrackingID)
	}
	if lines := readLines(t, path); len(lines) != 2 {
		t.Fatalf("got %d lines, want one per tracked body", len(lines))
	}
	if got := p.Stats().TrackedBodies; got != 2 {
		t.Fatalf("TrackedBodies = %d", got)
	}
}

func TestProcessFrameWithoutFrameChangesNothing(t *testing.T) {
	writer, path := newArmedWriter(t)
	p := capture.NewProcessor(&testsupport.RatioMapper{}, writer)

	if err := p.ProcessFrame(testsupport.NewFrameRef(testsupport.TrackedBody(5, 0, 0, 2))); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	before, _ := p.Latest()

	if err := p.ProcessFrame(&testsupport.FakeFrameRef{Expired: true}); err != nil {
		t.Fatalf("expired frame should not error: %v", err)
	}
	after, _ := p.Latest()
	if after != before {
		t.Fatal("published snapshot changed without a frame")
	}
	_, _ = writer.StopRecording()
	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if s := p.Stats(); s.Skipped != 1 || s.Frames != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestProcessFrameIdleDoesNotRecord(t *testing.T) {
	w, err := recording.NewWriter(recording.LineEndingLF)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	p := capture.NewProcessor(&testsupport.RatioMapper{}, w)
	if err := p.ProcessFrame(testsupport.NewFrameRef(testsupport.TrackedBody(1, 0, 0, 2))); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if _, ok := p.Latest(); !ok {
		t.Fatal("display snapshot should be published while idle")
	}
	if p.Stats().LinesRecorded != 0 || w.LinesWritten() != 0 {
		t.Fatal("idle writer recorded lines")
	}
}

func TestProcessFrameClampsNegativeDepth(t *testing.T) {
	mapper := &testsupport.RatioMapper{}
	writer, path := newArmedWriter(t)
	p := capture.NewProcessor(mapper, writer)

	body := testsupport.TrackedBody(1, 0, 0, 2)
	foot := body.Joints.Get(skeleton.FootLeft)
	foot.Position = skeleton.CameraSpacePoint{X: 0.2, Y: -0.9, Z: -0.05}
	foot.TrackingState = skeleton.Inferred
	body.Joints.Set(foot)

	if err := p.ProcessFrame(testsupport.NewFrameRef(body)); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	_, _ = writer.StopRecording()

	seen := mapper.Seen()
	mapped := seen[skeleton.FootLeft]
	if mapped.Z != skeleton.InferredZPositionClamp || mapped.X != 0.2 || mapped.Y != -0.9 {
		t.Fatalf("mapper received %+v, want clamped Z only", mapped)
	}

	latest, _ := p.Latest()
	if got := latest.Joints.Get(skeleton.FootLeft).Position.Z; got != -0.05 {
		t.Fatalf("published Z = %v, want the unclamped value", got)
	}
	wantX := float32(0.2) / skeleton.InferredZPositionClamp
	if latest.Projected[skeleton.FootLeft].X != wantX {
		t.Fatalf("projected X = %v, want %v", latest.Projected[skeleton.FootLeft].X, wantX)
	}

	fields := strings.Fields(readLines(t, path)[0])
	footZ := fields[int(skeleton.FootLeft)*recording.FieldsPerJoint+2]
	if footZ != "-0.05" {
		t.Fatalf("recorded Z = %s, want -0.05", footZ)
	}
}

func TestProcessFrameMapperFailureAbortsFrame(t *testing.T) {
	writer, path := newArmedWriter(t)
	p := capture.NewProcessor(testsupport.FailingMapper{Err: errors.New("mapper lost")}, writer)

	ref := testsupport.NewFrameRef(testsupport.TrackedBody(1, 0, 0, 2))
	if err := p.ProcessFrame(ref); err == nil {
		t.Fatal("expected mapper error")
	}
	if !ref.Frame.Closed() {
		t.Fatal("frame must be released when processing fails")
	}
	if _, ok := p.Latest(); ok {
		t.Fatal("nothing should be published for a failed body")
	}
	_, _ = writer.StopRecording()
	if lines := readLines(t, path); len(lines) != 0 {
		t.Fatalf("got %d lines after mapper failure", len(lines))
	}
}

func TestProcessFrameWithoutMapper(t *testing.T) {
	p := capture.NewProcessor(nil, nil)
	err := p.ProcessFrame(testsupport.NewFrameRef(testsupport.TrackedBody(1, 0, 0, 2)))
	if !errors.Is(err, sensor.ErrMapperUnavailable) {
		t.Fatalf("err = %v, want ErrMapperUnavailable", err)
	}
}

func TestProcessFrameRefreshFailureReleasesFrame(t *testing.T) {
	p := capture.NewProcessor(&testsupport.RatioMapper{}, nil)
	ref := testsupport.NewFrameRef(testsupport.TrackedBody(1, 0, 0, 2))
	ref.Frame.RefreshErr = errors.New("frame torn")
	if err := p.ProcessFrame(ref); err == nil {
		t.Fatal("expected refresh error")
	}
	if !ref.Frame.Closed() {
		t.Fatal("frame must be released when refresh fails")
	}
}
