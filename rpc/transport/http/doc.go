// Package http implements the HTTP transport of the binding service. It carries
// serialized RPC messages between client and server and also serves a JSON
// gateway that accepts the request bodies of AppRTC's GCM binding handlers.
//
// Routes served by the server transport:
//
//	POST /bind/{op}                    JSON gateway on the default shard
//	POST /shards/{shardId}/bind/{op}   JSON gateway on an explicit shard
//	POST /{shardId}                    serialized common.Message (json or binary)
//	GET  /metrics                      Prometheus text of the VictoriaMetrics default set
//
// Gateway operations are new, verify, update, del and query. A successful new,
// verify or update answers with the plain result code (SENT, SUCCESS, ...), del
// with an empty body and query with a JSON array of user ids. Malformed bodies and
// missing fields answer 400, unknown operations or shards 404, lost concurrent
// writes 409 and store faults 500.
//
// The client transport sends to the RPC endpoint and spreads requests round-robin
// over the configured endpoints. A request is only retried, on the next endpoint,
// when the connection failed before the server could answer.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http
