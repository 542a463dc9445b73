package catalog

import "time"

// Status is the lifecycle state of a recording session.
type Status string

const (
	// StatusRecording marks a session whose file is still open.
	StatusRecording Status = "recording"
	// StatusCompleted marks a session stopped normally.
	StatusCompleted Status = "completed"
	// StatusFailed marks a session ended by a write error.
	StatusFailed Status = "failed"
	// StatusInterrupted marks a session the daemon never closed, usually
	// because it crashed or was killed.
	StatusInterrupted Status = "interrupted"
)

// Entry is one recording session.
type Entry struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"`
	Device    string     `json:"device,omitempty"`
	Status    Status     `json:"status"`
	Lines     uint64     `json:"lines_written"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Failure   string     `json:"failure,omitempty"`
	// External is set when the session ignored sensor availability.
	External bool `json:"external,omitempty"`
}

// Duration returns how long the session ran, or ran so far.
func (e *Entry) Duration(now time.Time) time.Duration {
	if e == nil || e.StartedAt.IsZero() {
		return 0
	}
	end := now
	if e.StoppedAt != nil {
		end = *e.StoppedAt
	}
	if end.Before(e.StartedAt) {
		return 0
	}
	return end.Sub(e.StartedAt)
}
