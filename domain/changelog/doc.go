// Package changelog holds the domain model shared by the poller, the
// enricher and the backends: shards and cursors of a table change log, the
// raw change envelope, the resolved item and the outbound event pushed to
// subscribers.
//
// The package has no third-party dependencies. Backends (Kinesis, DynamoDB
// Streams, Kafka, pebble) implement ChangeLog and ItemStore and translate
// their native errors into the tagged Error type at the boundary.
package changelog
