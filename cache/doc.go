// Package cache memoizes function results on local disk.
//
// It provides argument normalization and key derivation, a file-per-key
// Store with lazy time-based expiration, and generic wrappers that make the
// cache transparent to callers.
package cache
