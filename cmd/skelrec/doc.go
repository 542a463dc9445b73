// Package main hosts the skelrec CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the recording daemon in the foreground
// and translates terminal invocations into IPC calls against it: starting
// and stopping recordings, status, the latest skeleton snapshot, and the
// recording catalog. It centralizes configuration resolution and socket
// discovery so subcommands can focus on output.
//
// Keep this package lean: add new functionality in the internal packages
// first, then surface it through dedicated commands or flags here.
package main
