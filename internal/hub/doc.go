// Package hub implements the relay's connection router: the single
// WebSocket endpoint that classifies each incoming connection by its
// declared role and attaches it to exactly one registry.
//
// Per-connection lifecycle: upgrade, token gate, role match, registry
// attach, role message loop, detach on close. Gate failures close with
// policy-violation code 1008 and reason "bad token" before any attachment;
// unrecognized roles close the same way with "unknown role". A connection
// that reached a registry is removed from it — and only it — when the
// transport signals close, so no registry ever holds a dangling handle.
//
// Every outbound delivery goes through the client's non-blocking trySend:
// a full send buffer drops the message rather than blocking a fan-out or
// disconnecting the peer. Roles and connect-time parameters:
//
//	role=ingest  stream   (default "A")   binary frames in, none out
//	role=view    stream   (default "A")   frames out, cached catch-up first
//	role=logs    level    (default info)  log entries out, backlog first
//	role=robot   robot_id (default "r1")  command messages out
package hub
