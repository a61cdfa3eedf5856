// Package syncerrors defines the error taxonomy for the continuous sync loop.
//
// The continuation controller treats error classes differently: transient
// provider errors are retried forever with fixed backoff, configuration
// errors fail only the current cycle, and a missing owning record terminates
// the run immediately because no further persistence is possible.
package syncerrors

import (
	"errors"
	"fmt"
)

// Class categorizes a sync error for controller-level handling
type Class string

const (
	// ClassConfiguration covers invalid or missing inputs (e.g. absent chain id)
	ClassConfiguration Class = "configuration"
	// ClassProvider covers transient RPC/data-source failures
	ClassProvider Class = "provider"
	// ClassRecordMissing covers the owning sync record disappearing
	ClassRecordMissing Class = "record_missing"
	// ClassStorage covers record-store read/write failures
	ClassStorage Class = "storage"
	// ClassInternal covers everything else
	ClassInternal Class = "internal"
)

// ErrRecordNotFound is returned by the record bridge when the owning
// analysis record cannot be found. The controller treats it as terminal.
var ErrRecordNotFound = errors.New("sync record not found")

// SyncError wraps an error with its controller-facing class
type SyncError struct {
	Class Class
	Op    string // operation that failed (e.g. "fetch", "normalize", "persist")
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s error during %s: %v", e.Class, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(op string, err error) *SyncError {
	return &SyncError{Class: ClassConfiguration, Op: op, Err: err}
}

// NewProviderError creates a transient provider error
func NewProviderError(op string, err error) *SyncError {
	return &SyncError{Class: ClassProvider, Op: op, Err: err}
}

// NewStorageError creates a record-store error
func NewStorageError(op string, err error) *SyncError {
	return &SyncError{Class: ClassStorage, Op: op, Err: err}
}

// NewInternalError creates an uncategorized internal error
func NewInternalError(op string, err error) *SyncError {
	return &SyncError{Class: ClassInternal, Op: op, Err: err}
}

// ClassOf returns the class of an error, defaulting to ClassInternal
func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrRecordNotFound) {
		return ClassRecordMissing
	}
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Class
	}
	return ClassInternal
}

// IsRecordMissing reports whether the error means the owning record is gone
func IsRecordMissing(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
