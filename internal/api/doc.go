// Package api defines wire-format types and converters shared by the IPC and
// HTTP layers. It translates capture and catalog models into
// transport-friendly DTOs that display clients can render without importing
// internal packages.
//
// # Key Types
//
// DaemonStatus: running state, sensor availability, the active recording,
// processor counters and preflight results.
//
// Snapshot: the most recently published body, one JointRow per joint in
// joint enumeration order.
//
// Recording: one catalog entry.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC. Depth-space coordinates that are not finite (a joint on the camera
// plane projects to -Inf) are encoded as null because JSON has no infinity.
package api
