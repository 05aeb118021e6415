// Package unix carries the RPC endpoint over unix domain sockets, for clients on
// the same machine as the server (a sidecar or a local gateway process).
//
// Framing and connection handling come from the base package. Listen replaces a
// stale socket file left by an earlier run but refuses to remove anything that is
// not a socket.
package unix
