package recording

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"skelrec/internal/skeleton"
)

var (
	// ErrAlreadyRecording is returned by StartRecording while armed.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording is returned by StopRecording while idle.
	ErrNotRecording = errors.New("no recording in progress")
)

// Summary describes a finished or failed recording session.
type Summary struct {
	Path      string
	Lines     uint64
	StartedAt time.Time
	StoppedAt time.Time
}

// Writer serializes body snapshots to a playback file while armed. All
// methods are safe for concurrent use; writes happen on the caller's
// goroutine and each line goes to the file in a single unbuffered write.
type Writer struct {
	newline string
	now     func() time.Time

	mu        sync.Mutex
	file      *os.File
	out       io.Writer
	path      string
	lines     uint64
	startedAt time.Time
	line      []byte
	onFailure func(Summary, error)
}

// NewWriter returns an idle writer using the given line ending mode.
func NewWriter(lineEnding string) (*Writer, error) {
	newline, err := Newline(lineEnding)
	if err != nil {
		return nil, err
	}
	return &Writer{newline: newline, now: time.Now}, nil
}

// OnFailure registers fn to run after a write error has disarmed the
// writer. fn is called without the writer lock held.
func (w *Writer) OnFailure(fn func(Summary, error)) {
	w.mu.Lock()
	w.onFailure = fn
	w.mu.Unlock()
}

// StartRecording creates or truncates path and arms the writer. The parent
// directory must already exist.
func (w *Writer) StartRecording(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return fmt.Errorf("start %s: %w (writing %s)", path, ErrAlreadyRecording, w.path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	w.file = f
	w.out = f
	w.path = path
	w.lines = 0
	w.startedAt = w.now()
	return nil
}

// StopRecording closes the file and disarms the writer.
func (w *Writer) StopRecording() (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return Summary{}, ErrNotRecording
	}
	summary := w.summaryLocked()
	if err := w.releaseLocked(); err != nil {
		return summary, fmt.Errorf("close recording %s: %w", summary.Path, err)
	}
	return summary, nil
}

// IsRecording reports whether the writer is armed.
func (w *Writer) IsRecording() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file != nil
}

// Path returns the file of the current or most recent session.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// LinesWritten returns the number of lines in the current or most recent
// session.
func (w *Writer) LinesWritten() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// WriteBody appends one line for a tracked body. It is a no-op while idle.
// On failure the file is closed and the writer disarmed before the error
// is returned.
func (w *Writer) WriteBody(joints *skeleton.JointSnapshot, projected *skeleton.ProjectedSnapshot) error {
	w.mu.Lock()
	if w.file == nil {
		w.mu.Unlock()
		return nil
	}
	w.line = AppendLine(w.line[:0], joints, projected, w.newline)
	if _, err := w.out.Write(w.line); err != nil {
		summary := w.summaryLocked()
		_ = w.releaseLocked()
		fn := w.onFailure
		w.mu.Unlock()
		err = fmt.Errorf("write recording %s: %w", summary.Path, err)
		if fn != nil {
			fn(summary, err)
		}
		return err
	}
	w.lines++
	w.mu.Unlock()
	return nil
}

func (w *Writer) summaryLocked() Summary {
	return Summary{Path: w.path, Lines: w.lines, StartedAt: w.startedAt, StoppedAt: w.now()}
}

func (w *Writer) releaseLocked() error {
	err := w.file.Close()
	w.file = nil
	w.out = nil
	return err
}
