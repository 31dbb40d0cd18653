// Package kvstore provides the durable key/value storage the ledger persists
// its state in. Every backend applies a write set atomically.
package kvstore

import "context"

// Op is a single write in an atomic write set. Delete ops ignore Value.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Put returns a write op.
func Put(key, value []byte) Op { return Op{Key: key, Value: value} }

// Del returns a delete op.
func Del(key []byte) Op { return Op{Key: key, Delete: true} }

// Store is the storage contract required by the ledger.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)
	// Scan calls fn for every key with the given prefix. Iteration order is
	// backend-specific.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
	// Apply commits all ops or none of them.
	Apply(ctx context.Context, ops []Op) error
	Close() error
}
