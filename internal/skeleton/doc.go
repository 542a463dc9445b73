// Package skeleton defines the body-tracking data model shared by the sensor
// drivers, the frame processor and the playback writer: the fixed joint
// enumeration, camera and depth space points, and per-body snapshots.
package skeleton
