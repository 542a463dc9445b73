package api

import (
	"math"
	"time"

	"skelrec/internal/capture"
	"skelrec/internal/catalog"
	"skelrec/internal/preflight"
)

// FromPublished converts the processor's latest body. ok=false yields an
// unavailable snapshot.
func FromPublished(p capture.Published, ok bool) Snapshot {
	if !ok {
		return Snapshot{}
	}
	snap := Snapshot{
		Available:   true,
		TrackingID:  p.TrackingID,
		Frame:       p.Frame,
		PublishedAt: FormatTime(p.PublishedAt),
		Joints:      make([]JointRow, 0, len(p.Joints)),
	}
	for i, j := range p.Joints {
		snap.Joints = append(snap.Joints, JointRow{
			Type:   j.Type.String(),
			Name:   j.Type.DisplayName(),
			State:  j.TrackingState.String(),
			X:      j.Position.X,
			Y:      j.Position.Y,
			Z:      j.Position.Z,
			DepthX: finite(p.Projected[i].X),
			DepthY: finite(p.Projected[i].Y),
		})
	}
	return snap
}

// FromStats converts processor counters.
func FromStats(s capture.Stats) ProcessorStats {
	return ProcessorStats{
		Frames:        s.Frames,
		Skipped:       s.Skipped,
		Failed:        s.Failed,
		TrackedBodies: s.TrackedBodies,
		LinesRecorded: s.LinesRecorded,
	}
}

// FromEntry converts a catalog entry. now is used for the running duration
// of sessions that have not stopped.
func FromEntry(entry *catalog.Entry, now time.Time) Recording {
	if entry == nil {
		return Recording{}
	}
	dto := Recording{
		ID:              entry.ID,
		Path:            entry.Path,
		Device:          entry.Device,
		Status:          string(entry.Status),
		Lines:           entry.Lines,
		StartedAt:       FormatTime(entry.StartedAt),
		DurationSeconds: entry.Duration(now).Seconds(),
		Failure:         entry.Failure,
		External:        entry.External,
	}
	if entry.StoppedAt != nil {
		dto.StoppedAt = FormatTime(*entry.StoppedAt)
	}
	return dto
}

// FromEntries converts a slice of catalog entries.
func FromEntries(entries []*catalog.Entry, now time.Time) []Recording {
	out := make([]Recording, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry, now))
	}
	return out
}

// FromPreflight converts readiness check results.
func FromPreflight(results []preflight.Result) []PreflightItem {
	if len(results) == 0 {
		return nil
	}
	out := make([]PreflightItem, 0, len(results))
	for _, r := range results {
		out = append(out, PreflightItem{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FormatTime renders t in the API timestamp format, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an API timestamp.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func finite(v float32) *float32 {
	if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
		return nil
	}
	return &v
}
