package ipc

import "skelrec/internal/api"

// StartRecordingRequest arms the recorder. Path wins over Stem; with
// neither, the daemon picks recording_<n>.txt in the playback directory.
type StartRecordingRequest struct {
	Stem               string `json:"stem"`
	Path               string `json:"path"`
	IgnoreAvailability bool   `json:"ignore_availability"`
}

// StartRecordingResponse reports whether recording started.
type StartRecordingResponse struct {
	Started bool   `json:"started"`
	ID      string `json:"id"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// StopRecordingRequest disarms the recorder.
type StopRecordingRequest struct{}

// StopRecordingResponse reports the saved file.
type StopRecordingResponse struct {
	Stopped bool   `json:"stopped"`
	ID      string `json:"id"`
	Path    string `json:"path"`
	Lines   uint64 `json:"lines"`
	Message string `json:"message"`
}

// IsRecordingRequest queries the recorder state.
type IsRecordingRequest struct{}

// IsRecordingResponse carries the recorder state.
type IsRecordingResponse struct {
	Recording bool `json:"recording"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP API status DTO.
type StatusResponse = api.DaemonStatus

// SnapshotRequest fetches the latest published body.
type SnapshotRequest struct{}

// SnapshotResponse mirrors the HTTP API snapshot DTO.
type SnapshotResponse = api.Snapshot

// RecordingsRequest lists catalog entries. Limit <= 0 lists all.
type RecordingsRequest struct {
	Limit int `json:"limit"`
}

// RecordingsResponse mirrors the HTTP API recording list.
type RecordingsResponse = api.RecordingListResponse

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Accepted bool `json:"accepted"`
}
