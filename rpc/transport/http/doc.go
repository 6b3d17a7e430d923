// Package http implements the RPC transports over HTTP.
//
// The server accepts serialized requests as POST /{shardId} and answers with the serialized
// response in the body. GET /metrics exposes the server metrics in Prometheus text format.
// With log level debug every request is logged with its status and duration.
//
// The client spreads requests round-robin over all configured endpoints. A failed request is
// retried against the next endpoint up to RetryCount times. Endpoints without a scheme get
// http:// prepended.
package http
