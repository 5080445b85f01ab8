package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/diskmemo/observe"
)

// DefaultRoot is the cache directory used when none is configured. Relative
// paths resolve against the working directory of the process.
const DefaultRoot = ".cache"

// tempPrefix marks in-flight writes. Keys never start with a dot, so temp
// files cannot be mistaken for entries.
const tempPrefix = ".tmp-"

// DiskStoreConfig configures a DiskStore.
type DiskStoreConfig struct {
	// Root is the cache directory. Default: DefaultRoot
	Root string

	// Policy supplies the freshness timeout.
	Policy Policy

	// Codec encodes entry payloads. Default: JSONCodec
	Codec Codec

	// Logger receives warnings about failed cleanup. Default: no-op
	Logger observe.Logger

	// Now is the clock used to compute entry age. Default: time.Now
	Now func() time.Time
}

// DiskStore keeps one file per key under a root directory. The file holds
// the encoded value and nothing else; its modification time is the entry's
// creation time.
type DiskStore struct {
	root   string
	policy Policy
	codec  Codec
	logger observe.Logger
	now    func() time.Time
}

// EnsureRoot creates the cache directory if it does not exist.
func EnsureRoot(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("cache: failed to create cache directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cache: failed to stat cache directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache: %s is not a directory", dir)
	}
	return nil
}

// NewDiskStore creates a disk store, creating its root directory if needed.
func NewDiskStore(cfg DiskStoreConfig) (*DiskStore, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if cfg.Codec == nil {
		cfg.Codec = JSONCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if err := EnsureRoot(cfg.Root); err != nil {
		return nil, err
	}

	return &DiskStore{
		root:   cfg.Root,
		policy: cfg.Policy.withDefaults(),
		codec:  cfg.Codec,
		logger: cfg.Logger,
		now:    cfg.Now,
	}, nil
}

// Root returns the cache directory.
func (s *DiskStore) Root() string {
	return s.root
}

// Timeout returns the freshness timeout.
func (s *DiskStore) Timeout() time.Duration {
	return s.policy.Timeout
}

// EntryPath returns the file that holds the entry for key.
func (s *DiskStore) EntryPath(key string) string {
	return filepath.Join(s.root, key)
}

// Read decodes the entry for key into dst.
//
// A missing entry is a miss. An entry older than the timeout is deleted and
// reported as a miss; if that delete fails the failure is logged and the
// lookup is still a miss. A payload that cannot be decoded is ErrCorruptEntry.
func (s *DiskStore) Read(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	path := s.EntryPath(key)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: "read", Key: key, Path: path, Err: err}
	}

	// Stat the open file so age and payload come from the same entry even if
	// a writer renames a new one into place meanwhile.
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return false, &StorageError{Op: "stat", Key: key, Path: path, Err: err}
	}

	if age := s.now().Sub(info.ModTime()); !s.policy.Fresh(age) {
		_ = f.Close()
		if err := s.Delete(ctx, key); err != nil {
			s.logger.Warn(ctx, "failed to delete expired cache entry",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "age_ms", Value: age.Milliseconds()},
				observe.Field{Key: "error", Value: err},
			)
		}
		return false, nil
	}

	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return false, &StorageError{Op: "read", Key: key, Path: path, Err: err}
	}

	if err := s.codec.Unmarshal(data, dst); err != nil {
		return false, corruptEntry(key, err)
	}
	return true, nil
}

// Write encodes value and atomically replaces the entry for key. The payload
// goes to a temporary file in the root which is synced and then renamed over
// the entry, so concurrent readers see either the old or the new payload.
func (s *DiskStore) Write(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	data, err := s.codec.Marshal(value)
	if err != nil {
		return unencodable(key, err)
	}

	path := s.EntryPath(key)
	tmp := filepath.Join(s.root, tempPrefix+uuid.NewString())
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return &StorageError{Op: "write", Key: key, Path: tmp, Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // Clean up temp file on error
		return &StorageError{Op: "rename", Key: key, Path: path, Err: err}
	}
	return nil
}

// Delete removes the entry for key. Deleting a missing entry succeeds, so
// concurrent readers that both find an entry expired do not fail.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	path := s.EntryPath(key)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "delete", Key: key, Path: path, Err: err}
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func corruptEntry(key string, err error) error {
	if errors.Is(err, ErrCorruptEntry) {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return fmt.Errorf("%w: key %q: %v", ErrCorruptEntry, key, err)
}

func unencodable(key string, err error) error {
	if errors.Is(err, ErrUnencodable) {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return fmt.Errorf("%w: key %q: %v", ErrUnencodable, key, err)
}

// Ensure DiskStore implements Store
var _ Store = (*DiskStore)(nil)
