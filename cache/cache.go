package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key. Keys name
// files directly, so this matches the common NAME_MAX of 255 bytes.
const MaxKeyLength = 255

// Sentinel errors for cache operations.
var (
	ErrNilCacher  = errors.New("cache: cacher is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrUnsupportedKeyArgument is returned when an argument cannot be
	// normalized into a stable key component, and by every call of a wrapped
	// method value that has no explicit identity.
	ErrUnsupportedKeyArgument = errors.New("cache: unsupported key argument")

	// ErrUnsupportedResult is returned by every call of a wrapper whose
	// result type contains an interface. Decoding into an interface yields
	// JSON's generic types (float64, map[string]any), so a hit would not
	// return what the miss returned.
	ErrUnsupportedResult = errors.New("cache: unsupported result type")

	// ErrCorruptEntry is returned when a stored entry cannot be decoded.
	ErrCorruptEntry = errors.New("cache: corrupt entry")

	// ErrUnencodable is returned when a value is outside the supported
	// payload shapes.
	ErrUnencodable = errors.New("cache: value is not encodable")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("cache: storage error")

	// ErrNotCached marks a computed result that could not be persisted.
	// The result itself is still returned to the caller.
	ErrNotCached = errors.New("cache: result was not cached")
)

// StorageError records a filesystem failure and the entry it concerned.
type StorageError struct {
	Op   string // read, write, rename, delete, stat
	Key  string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache: %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports ErrStorage as matching any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Store persists encoded values under cache keys.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation before touching storage.
// - Read returns (false, nil) on a miss, including an expired entry.
// - Write replaces any prior entry; readers never observe a partial write.
// - Delete is idempotent: no error when the entry is already gone.
type Store interface {
	// Read decodes the fresh entry for key into dst.
	Read(ctx context.Context, key string, dst any) (bool, error)

	// Write encodes value and stores it under key.
	Write(ctx context.Context, key string, value any) error

	// Delete removes the entry for key if it exists.
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks if a key is usable as a cache entry name.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	// Reject path separators and bytes no filesystem accepts in a name
	if strings.ContainsAny(key, "/\\\x00\n\r") {
		return ErrInvalidKey
	}
	return nil
}
