// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the easel CLI.
//
// It owns socket lifecycle management and the request/response DTOs for
// run submission, pause/resume/cancel control, queue maintenance, event
// streaming, metrics, and log tailing. The server wraps the daemon's
// control surface; the client dials with a short timeout so CLI commands
// fail fast when the daemon is offline.
//
// Reuse these types when adding new RPC endpoints to keep the protocol
// stable and compatible with existing command implementations.
package ipc
