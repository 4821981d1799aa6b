package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrCASUnsupported is returned by storage constructors when the
// underlying store cannot be configured for versioned writes.
var ErrCASUnsupported = errors.New("store does not support compare-and-swap")

// Version is the opaque revision token of a counter record. A store
// mints a new one on every accepted write.
type Version uint64

// Conn is a connection to a key-value store offering the primitives
// the counter backend is built on. None of the methods retry.
type Conn interface {
	// GetWithVersion returns the value and version of key. found is
	// false when the key is absent or expired.
	GetWithVersion(ctx context.Context, key string) (value int64, version Version, found bool, err error)

	// CompareAndSwap writes value only if the current version of key
	// still equals version. It reports false on a version mismatch or
	// when the key disappeared since it was read.
	CompareAndSwap(ctx context.Context, key string, value int64, version Version, ttl int32) (bool, error)

	// AddIfAbsent creates key with value and reports whether this call
	// created it.
	AddIfAbsent(ctx context.Context, key string, value int64, ttl int32) (bool, error)

	// MultiGet returns the values of the keys that are currently
	// present. Absent keys are omitted.
	MultiGet(ctx context.Context, keys []string) (map[string]int64, error)

	Close() error
}

// Dialer opens a new connection. Pools call it once per slot.
type Dialer func() (Conn, error)
