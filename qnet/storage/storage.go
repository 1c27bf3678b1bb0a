// Package storage defines the chain's key-value storage collaborator
// (spec.md §6 "Storage — put(key, value), get(key) -> value?,
// iter_range(prefix); atomic batch for block append").
//
// Grounded on cuemby-warren/pkg/storage's BoltStore, generalized from a
// fixed set of typed JSON buckets to a single generic byte-keyed store: this
// core persists opaque canonical-byte-serialized blocks and state entries,
// not the warren-specific object model.
package storage

import "errors"

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Store is the collaborator interface consulted by the chain and sync
// packages (spec.md §6).
type Store interface {
	// Put writes value under key, replacing any existing entry.
	Put(key, value []byte) error
	// Get retrieves the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// IterRange calls fn for every key with the given prefix in ascending
	// key order; fn returning an error stops iteration and propagates it.
	IterRange(prefix []byte, fn func(key, value []byte) error) error
	// Batch executes fn's writes atomically (spec.md §5 "single-writer
	// appender ... atomic batch for block append").
	Batch(fn func(b Batch) error) error
	// Close releases any underlying resources.
	Close() error
}

// Batch accumulates writes applied atomically by Store.Batch.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}
