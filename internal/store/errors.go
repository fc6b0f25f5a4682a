package store

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrCacheMiss signals an absent or expired cache entry.
	ErrCacheMiss = errors.New("store: cache miss")
)

// Op constants name the failing storage operation for error context.
const (
	OpInsert = "insert"
	OpQuery  = "query"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpCache  = "cache"
	OpPing   = "ping"
)

// Error wraps an underlying connectivity or serialization failure with the
// operation name. Background loops match on it, log, and continue.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "store " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
