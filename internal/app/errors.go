package app

import (
	"errors"
	"fmt"
)

// Error taxonomy for the migration run. ConnectionError and EnumerationError
// abort the whole run; the remaining kinds are isolated to a single key or
// deferred entry and only counted.

// ConnectionError reports an authentication or transport failure while
// establishing a store connection. Fatal.
type ConnectionError struct {
	Side string // "source" or "target"
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Side, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// EnumerationError reports a transport failure during keyspace enumeration.
// Fatal: the source is unreachable or inconsistent, which invalidates the
// whole migration attempt.
type EnumerationError struct {
	Cursor uint64
	Err    error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumeration failed at cursor %d: %v", e.Cursor, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// SizeQueryError reports a failed size query for one key. Non-fatal: the key
// is routed as transferable instead.
type SizeQueryError struct {
	Key string
	Err error
}

func (e *SizeQueryError) Error() string {
	return fmt.Sprintf("size query for key %q failed: %v", e.Key, e.Err)
}

func (e *SizeQueryError) Unwrap() error { return e.Err }

// TransferError reports a serialize, lifetime query, or write failure for one
// key. Non-fatal: the key is counted as failed and the run continues.
type TransferError struct {
	Key string
	Op  string // "dump", "pttl", or "restore"
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed for key %q: %v", e.Op, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// DeferredEntryError reports a failure while recording one deferred entry to
// the manifest. Non-fatal: the line is omitted and processing continues.
type DeferredEntryError struct {
	Key string
	Err error
}

func (e *DeferredEntryError) Error() string {
	return fmt.Sprintf("deferred entry %q failed: %v", e.Key, e.Err)
}

func (e *DeferredEntryError) Unwrap() error { return e.Err }

// IsFatal reports whether an error kind aborts the run
func IsFatal(err error) bool {
	var connErr *ConnectionError
	var enumErr *EnumerationError
	return errors.As(err, &connErr) || errors.As(err, &enumErr)
}
