// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs.
// Recording control failures that a user can act on (sensor unavailable,
// already recording, nothing to stop) are reported in the response with a
// message rather than as RPC errors, so the CLI can print them verbatim.
package ipc
