package store

import "errors"

var (
	// ErrMetadataNotFound indicates no metadata has been published for
	// the datasource.
	ErrMetadataNotFound = errors.New("datasource metadata not found")

	// ErrPreconditionFailed indicates the stored metadata no longer
	// equals the caller's expected value. The caller must re-read and
	// re-derive its expectation.
	ErrPreconditionFailed = errors.New("metadata precondition failed")
)
