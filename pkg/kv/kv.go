// Package kv provides the key-value store that persists built phoneme
// inventories between runs. Keys are hierarchical paths (e.g.
// ["alice", "phoneme", "AE"]) encoded with a configurable separator (default
// ':').
//
// Badger backs the on-disk snapshot cache; Memory serves tests and runs with
// caching disabled.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned when a key segment contains the separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a hierarchical path represented as a slice of string segments.
// For example, Key{"alice", "phoneme", "AE"} encodes to "alice:phoneme:AE"
// using the default separator ':'.
type Key []string

// String returns the key joined with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// List iterates over all entries whose key starts with the given prefix.
	// The iteration order is lexicographic by encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple key-value pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete atomically removes multiple keys.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases any resources held by the store.
	Close() error
}

// DeletePrefix removes every key below prefix.
func DeletePrefix(ctx context.Context, s Store, prefix Key) error {
	var keys []Key
	for e, err := range s.List(ctx, prefix) {
		if err != nil {
			return err
		}
		keys = append(keys, e.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.BatchDelete(ctx, keys)
}

// DefaultSeparator is the default separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator is the byte used to join key segments when encoding to storage.
	// Default is ':' if zero.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// check rejects keys that would not decode back to the same segments.
func (o *Options) check(k Key) error {
	if len(k) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	s := string(o.sep())
	for _, seg := range k {
		if strings.Contains(seg, s) {
			return fmt.Errorf("%w: segment %q contains %q", ErrInvalidKey, seg, s)
		}
	}
	return nil
}

func (o *Options) encode(k Key) []byte {
	return []byte(strings.Join(k, string(o.sep())))
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// prefix returns the encoded scan prefix. The trailing separator keeps
// "a:b" from matching "a:bc"; an empty prefix scans everything.
func (o *Options) prefix(k Key) []byte {
	if len(k) == 0 {
		return nil
	}
	return append(o.encode(k), o.sep())
}
