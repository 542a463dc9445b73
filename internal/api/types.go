package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool            `json:"running"`
	PID             int             `json:"pid"`
	Device          string          `json:"device"`
	SensorAvailable bool            `json:"sensorAvailable"`
	Recording       *ActiveSession  `json:"recording,omitempty"`
	Processor       ProcessorStats  `json:"processor"`
	CatalogPath     string          `json:"catalogPath"`
	LockFilePath    string          `json:"lockFilePath"`
	PlaybackDir     string          `json:"playbackDir"`
	Preflight       []PreflightItem `json:"preflight,omitempty"`
}

// ActiveSession describes the recording currently armed.
type ActiveSession struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Lines     uint64 `json:"lines"`
	StartedAt string `json:"startedAt,omitempty"`
	External  bool   `json:"external"`
}

// ProcessorStats mirrors the frame processor counters.
type ProcessorStats struct {
	Frames        uint64 `json:"frames"`
	Skipped       uint64 `json:"skipped"`
	Failed        uint64 `json:"failed"`
	TrackedBodies int    `json:"trackedBodies"`
	LinesRecorded uint64 `json:"linesRecorded"`
	Dropped       uint64 `json:"dropped"`
}

// PreflightItem is one readiness check result.
type PreflightItem struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Snapshot is the latest published body.
type Snapshot struct {
	Available   bool       `json:"available"`
	TrackingID  uint64     `json:"trackingId,omitempty"`
	Frame       uint64     `json:"frame,omitempty"`
	PublishedAt string     `json:"publishedAt,omitempty"`
	Joints      []JointRow `json:"joints,omitempty"`
}

// JointRow is one joint of a snapshot. Camera coordinates are the sensor
// values as reported; depth coordinates were projected from the clamped
// position.
type JointRow struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	State  string   `json:"state"`
	X      float32  `json:"x"`
	Y      float32  `json:"y"`
	Z      float32  `json:"z"`
	DepthX *float32 `json:"depthX"`
	DepthY *float32 `json:"depthY"`
}

// Recording describes a catalog entry.
type Recording struct {
	ID              string  `json:"id"`
	Path            string  `json:"path"`
	Device          string  `json:"device,omitempty"`
	Status          string  `json:"status"`
	Lines           uint64  `json:"lines"`
	StartedAt       string  `json:"startedAt,omitempty"`
	StoppedAt       string  `json:"stoppedAt,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
	Failure         string  `json:"failure,omitempty"`
	External        bool    `json:"external"`
}

// RecordingListResponse wraps a collection of recordings.
type RecordingListResponse struct {
	Recordings []Recording `json:"recordings"`
}
