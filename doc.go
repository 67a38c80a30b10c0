// Package shuffle implements a stable, external-memory shuffler.
//
// A Shuffler accepts an arbitrary number of (key, payload) records and
// re-emits each of them exactly once, in a deterministic order keyed
// on a 128-bit hash of the caller's key and a caller-supplied salt.
// Two Shufflers fed the same (salt, records) always produce the same
// output, regardless of insertion order, wall-clock timing, or the
// number of buckets used internally.
//
// A Shuffler holds records in memory until the cumulative payload size
// crosses MaxMemBufferSize, at which point it spills to BucketsNumber
// on-disk shards and never goes back. Iterating a Shuffler is single
// use: it transitions the Shuffler to a read-only state, and any
// further call to Add fails.
//
// Shuffler is not safe for concurrent use. All methods must be called
// from a single goroutine; there are no internal locks.
package shuffle
