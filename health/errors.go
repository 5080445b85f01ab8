package health

import "errors"

var (
	// ErrRootMissing indicates the cache root does not exist.
	ErrRootMissing = errors.New("health: cache root does not exist")

	// ErrRootNotDir indicates the cache root is not a directory.
	ErrRootNotDir = errors.New("health: cache root is not a directory")

	// ErrRootNotWritable indicates a scratch file could not be written.
	ErrRootNotWritable = errors.New("health: cache root is not writable")
)
