package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// RootChecker checks that a cache root exists, is a directory and accepts
// writes.
type RootChecker struct {
	dir string
}

// NewRootChecker creates a checker for dir.
func NewRootChecker(dir string) *RootChecker {
	return &RootChecker{dir: dir}
}

// Name returns the name of this checker.
func (c *RootChecker) Name() string {
	return "cache-root"
}

// Check stats the root and writes then removes a scratch file in it.
func (c *RootChecker) Check(ctx context.Context) Result {
	start := time.Now()
	details := map[string]any{"dir": c.dir}

	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err).WithDetails(details)
	}

	info, err := os.Stat(c.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Unhealthy("cache root does not exist", fmt.Errorf("%w: %s", ErrRootMissing, c.dir)).
			WithDetails(details).WithDuration(time.Since(start))
	case err != nil:
		return Unhealthy("cannot stat cache root", err).
			WithDetails(details).WithDuration(time.Since(start))
	case !info.IsDir():
		return Unhealthy("cache root is not a directory", fmt.Errorf("%w: %s", ErrRootNotDir, c.dir)).
			WithDetails(details).WithDuration(time.Since(start))
	}

	scratch, err := os.CreateTemp(c.dir, ".health-*")
	if err != nil {
		return Unhealthy("cache root is not writable", fmt.Errorf("%w: %v", ErrRootNotWritable, err)).
			WithDetails(details).WithDuration(time.Since(start))
	}
	name := scratch.Name()
	_ = scratch.Close()
	if err := os.Remove(name); err != nil {
		// Writes work; a leftover scratch file only wastes space.
		return Degraded("scratch file could not be removed").
			WithDetails(details).WithDuration(time.Since(start))
	}

	return Healthy("cache root is writable").WithDetails(details).WithDuration(time.Since(start))
}

// Ensure RootChecker implements Checker
var _ Checker = (*RootChecker)(nil)
