package docsync

import "github.com/kailas-cloud/docsync/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrRecordNotFound        = domain.ErrRecordNotFound
	ErrInvalidCollection     = domain.ErrInvalidCollection
	ErrConfiguration         = domain.ErrConfiguration
	ErrResyncInProgress      = domain.ErrResyncInProgress
	ErrBulkRejected          = domain.ErrBulkRejected
	ErrIndexOperation        = domain.ErrIndexOperation
	ErrTransientTransport    = domain.ErrTransientTransport
	ErrInvalidResponseFormat = domain.ErrInvalidResponseFormat
)
