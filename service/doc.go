// Package service holds the in-process core shared by the poller, the
// heartbeat, the Kafka mirror and the gRPC endpoint: the subscriber
// registry and the record enricher.
//
// Everything is wired by constructor in cmd/server. No globals.
package service
