// Package store implements the content store: a digest-addressed blob
// store backed by badger.
//
// Content is keyed by its SHA3-256 digest, so identical bytes are stored
// exactly once regardless of how many names or tags reach them. The store
// has no knowledge of the node graph above it; reference tracking and the
// decision to delete a blob belong to the engine.
//
// Blob keys carry a color-hash derived bucket prefix (1000 buckets) so
// that prefix scans over the keyspace stay evenly distributed.
package store
