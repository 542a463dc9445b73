// Package daemon coordinates the long-running skelrec process.
//
// It wires configuration, the sensor session, the frame processor, the
// recording writer and the recording catalog into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes
// recording control (start, stop, status), the latest published skeleton,
// and catalog listings to the IPC server and the optional HTTP API.
//
// Keep orchestration logic here: frame handling lives in capture, file
// output in recording, and device specifics in the sensor drivers.
package daemon
