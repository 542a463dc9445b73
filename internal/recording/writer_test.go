package recording

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skelrec/internal/skeleton"
)

func sampleBody() (*skeleton.JointSnapshot, *skeleton.ProjectedSnapshot) {
	joints := skeleton.NewJointSnapshot()
	var projected skeleton.ProjectedSnapshot
	for i := range joints {
		joints[i].Position = skeleton.CameraSpacePoint{X: float32(i) + 0.5, Y: -1.25, Z: 2}
		joints[i].TrackingState = skeleton.Tracked
		projected[i] = skeleton.DepthSpacePoint{X: float32(100 + i), Y: 50.5}
	}
	return &joints, &projected
}

func newTestWriter(t *testing.T, mode string) *Writer {
	t.Helper()
	w, err := NewWriter(mode)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func TestAppendLineLayout(t *testing.T) {
	joints, projected := sampleBody()
	line := string(AppendLine(nil, joints, projected, "\n"))

	if !strings.HasPrefix(line, "0.5 -1.25 2 100 50.5 1.5 -1.25 2 101 50.5 ") {
		t.Fatalf("unexpected prefix: %q", line[:60])
	}
	if !strings.HasSuffix(line, " 24.5 -1.25 2 124 50.5\n") {
		t.Fatalf("unexpected suffix: %q", line[len(line)-40:])
	}
	body := strings.TrimSuffix(line, "\n")
	if strings.HasSuffix(body, " ") || strings.Contains(body, "  ") {
		t.Fatal("separators must be single spaces with no trailing space")
	}
	if fields := strings.Split(body, " "); len(fields) != skeleton.JointCount*FieldsPerJoint {
		t.Fatalf("got %d fields, want %d", len(fields), skeleton.JointCount*FieldsPerJoint)
	}
}

func TestAppendLineUsesShortestFloat32(t *testing.T) {
	joints := skeleton.NewJointSnapshot()
	var projected skeleton.ProjectedSnapshot
	joints[0].Position = skeleton.CameraSpacePoint{X: 0.1, Y: -0.3333333, Z: 1e-7}
	projected[0] = skeleton.DepthSpacePoint{X: 254.878, Y: 0}

	line := string(AppendLine(nil, &joints, &projected, ""))
	want := "0.1 -0.3333333 1e-07 254.878 0"
	if !strings.HasPrefix(line, want+" ") {
		t.Fatalf("got %q, want prefix %q", line[:len(want)+1], want)
	}
}

func TestAppendLineExponentAndInfinityForms(t *testing.T) {
	joints := skeleton.NewJointSnapshot()
	var projected skeleton.ProjectedSnapshot
	joints[0].Position = skeleton.CameraSpacePoint{X: 3e-5, Y: 1, Z: 2}
	projected[0] = skeleton.DepthSpacePoint{X: float32(math.Inf(-1)), Y: float32(math.Inf(1))}

	line := string(AppendLine(nil, &joints, &projected, ""))
	want := "3e-05 1 2 -Inf +Inf"
	if !strings.HasPrefix(line, want+" ") {
		t.Fatalf("got %q, want prefix %q", line[:len(want)+1], want)
	}
}

func TestNewline(t *testing.T) {
	if nl, _ := Newline("lf"); nl != "\n" {
		t.Fatalf("lf = %q", nl)
	}
	if nl, _ := Newline("CRLF"); nl != "\r\n" {
		t.Fatalf("crlf = %q", nl)
	}
	if nl, _ := Newline(""); nl == "" {
		t.Fatal("platform newline is empty")
	}
	if _, err := Newline("cr"); err == nil {
		t.Fatal("expected error for unknown line ending")
	}
}

func TestWriterSessionProducesExactBytes(t *testing.T) {
	w := newTestWriter(t, LineEndingCRLF)
	path := filepath.Join(t.TempDir(), "walk.txt")
	joints, projected := sampleBody()

	if w.IsRecording() {
		t.Fatal("new writer should be idle")
	}
	if err := w.StartRecording(path); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !w.IsRecording() {
		t.Fatal("expected writer armed")
	}
	for i := 0; i < 3; i++ {
		if err := w.WriteBody(joints, projected); err != nil {
			t.Fatalf("WriteBody: %v", err)
		}
	}
	summary, err := w.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if w.IsRecording() {
		t.Fatal("expected writer idle after stop")
	}
	if summary.Lines != 3 || summary.Path != path {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	line := AppendLine(nil, joints, projected, "\r\n")
	want := strings.Repeat(string(line), 3)
	if string(data) != want {
		t.Fatalf("file content mismatch:\n got %q\nwant %q", data, want)
	}
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		t.Fatal("file must not start with a byte order mark")
	}
	if w.Path() != path || w.LinesWritten() != 3 {
		t.Fatalf("Path=%q LinesWritten=%d after stop", w.Path(), w.LinesWritten())
	}
}

func TestWriterIdleWritesNothing(t *testing.T) {
	w := newTestWriter(t, LineEndingLF)
	joints, projected := sampleBody()
	if err := w.WriteBody(joints, projected); err != nil {
		t.Fatalf("idle WriteBody: %v", err)
	}
	if w.LinesWritten() != 0 {
		t.Fatalf("LinesWritten = %d", w.LinesWritten())
	}
	if _, err := w.StopRecording(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("StopRecording idle err = %v", err)
	}
}

func TestStartRecordingTruncatesExistingFile(t *testing.T) {
	w := newTestWriter(t, LineEndingLF)
	path := filepath.Join(t.TempDir(), "take.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("stale data\n", 500)), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	joints, projected := sampleBody()

	if err := w.StartRecording(path); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := w.WriteBody(joints, projected); err != nil {
		t.Fatalf("WriteBody: %v", err)
	}
	if _, err := w.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != string(AppendLine(nil, joints, projected, "\n")) {
		t.Fatalf("expected only the new line, got %d bytes", len(data))
	}
}

func TestWriteBodyReachesDiskBeforeStop(t *testing.T) {
	w := newTestWriter(t, LineEndingLF)
	path := filepath.Join(t.TempDir(), "live.txt")
	joints, projected := sampleBody()
	line := AppendLine(nil, joints, projected, "\n")

	if err := w.StartRecording(path); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	defer w.StopRecording()
	for i := 1; i <= 20; i++ {
		if err := w.WriteBody(joints, projected); err != nil {
			t.Fatalf("WriteBody %d: %v", i, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if want := int64(i * len(line)); info.Size() != want {
			t.Fatalf("after %d lines: %d bytes on disk, want %d", i, info.Size(), want)
		}
	}
}

func TestRestartingOnSamePathKeepsOnlyLatestSession(t *testing.T) {
	w := newTestWriter(t, LineEndingLF)
	path := filepath.Join(t.TempDir(), "take.txt")
	joints, projected := sampleBody()

	session := func(lines int) {
		t.Helper()
		if err := w.StartRecording(path); err != nil {
			t.Fatalf("StartRecording: %v", err)
		}
		for i := 0; i < lines; i++ {
			if err := w.WriteBody(joints, projected); err != nil {
				t.Fatalf("WriteBody: %v", err)
			}
		}
		if _, err := w.StopRecording(); err != nil {
			t.Fatalf("StopRecording: %v", err)
		}
	}
	session(5)
	session(2)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := strings.Repeat(string(AppendLine(nil, joints, projected, "\n")), 2)
	if string(data) != want {
		t.Fatalf("got %d bytes, want %d from the second session only", len(data), len(want))
	}
}

func TestStartRecordingRejectsSecondSession(t *testing.T) {
	w := newTestWriter(t, LineEndingLF)
	dir := t.TempDir()
	if err := w.StartRecording(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	defer w.StopRecording()
	if err := w.StartRecording(filepath.Join(dir, "b.txt")); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second StartRecording err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.txt")); !os.IsNotExist(err) {
		t.Fatal("rejected start must not create a file")
	}
}

func TestStartRecordingRequiresParentDirectory(t *testing.T) {
	w := newTestWriter(t, LineEndingLF)
	parent := filepath.Join(t.TempDir(), "missing")
	if err := w.StartRecording(filepath.Join(parent, "x.txt")); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
	if w.IsRecording() {
		t.Fatal("writer armed after failed start")
	}
	if _, err := os.Stat(parent); !os.IsNotExist(err) {
		t.Fatal("parent directory must not be created")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteFailureDisarmsAndNotifies(t *testing.T) {
	w := newTestWriter(t, LineEndingLF)
	path := filepath.Join(t.TempDir(), "fail.txt")
	if err := w.StartRecording(path); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	w.out = failingWriter{}

	var notified Summary
	var notifiedErr error
	w.OnFailure(func(s Summary, err error) {
		notified = s
		notifiedErr = err
	})

	joints, projected := sampleBody()
	err := w.WriteBody(joints, projected)
	if err == nil {
		t.Fatal("expected write error")
	}
	if w.IsRecording() {
		t.Fatal("writer should disarm after a write error")
	}
	if notifiedErr == nil || notified.Path != path {
		t.Fatalf("failure observer not called: %+v %v", notified, notifiedErr)
	}
	if err := w.WriteBody(joints, projected); err != nil {
		t.Fatalf("WriteBody after failure should be a no-op: %v", err)
	}
}
