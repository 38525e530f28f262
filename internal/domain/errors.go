package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals conflicting or malformed configuration. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransientTransport signals a reset, broken pipe or timeout talking to the search engine.
	ErrTransientTransport = errors.New("transient transport error")
	// ErrTransport signals any transport failure below HTTP.
	ErrTransport = errors.New("transport error")
	// ErrInvalidResponseFormat signals a search engine reply that is not JSON.
	ErrInvalidResponseFormat = errors.New("invalid response format")
	// ErrIndexOperation signals an error status returned by the search engine.
	ErrIndexOperation = errors.New("index operation failed")
	// ErrRecordNotFound signals a missing primary-store record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidCollection signals a collection name that cannot be used as a key segment.
	ErrInvalidCollection = errors.New("invalid collection name")
	// ErrMissingID signals a record without an identifier.
	ErrMissingID = errors.New("record has no id")
	// ErrBulkRejected signals a bulk load in which the search engine refused some documents.
	ErrBulkRejected = errors.New("bulk load rejected")
	// ErrResyncInProgress signals a resynchronization already running for the same collection.
	ErrResyncInProgress = errors.New("resync already in progress")
)

// ConfigurationError describes a single invalid or conflicting setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration.Error(), e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError creates a configuration error for the given field.
func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// TransportError is returned when a request could not be completed at the transport level.
// Transient is set when the final cause was a reset/pipe/timeout and the retry budget ran out.
type TransportError struct {
	Request   Request
	Attempts  int
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("search request %s failed after %d attempt(s): %v", e.Request, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e.Transient {
		return []error{ErrTransientTransport, ErrTransport, e.Err}
	}
	return []error{ErrTransport, e.Err}
}

// InvalidResponseError carries the raw body of a reply that failed to parse as JSON.
type InvalidResponseError struct {
	Request Request
	Status  int
	Body    []byte
	Err     error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("search engine did not send back a valid JSON reply to %s (status %d): %q",
		e.Request, e.Status, truncate(e.Body, 256))
}

func (e *InvalidResponseError) Unwrap() []error { return []error{ErrInvalidResponseFormat, e.Err} }

// IndexOperationError is returned when the search engine answers with an error status.
type IndexOperationError struct {
	Request Request
	Status  int
	Body    any
}

func (e *IndexOperationError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d: %v", ErrIndexOperation.Error(), e.Request, e.Status, e.Body)
}

func (e *IndexOperationError) Unwrap() error { return ErrIndexOperation }

// BulkRejectedError reports the documents a bulk request failed to load.
type BulkRejectedError struct {
	Index  string
	Failed int
	First  string // reason of the first rejected document
}

func (e *BulkRejectedError) Error() string {
	return fmt.Sprintf("%s: %d documents rejected by %s, first: %s", ErrBulkRejected.Error(), e.Failed, e.Index, e.First)
}

func (e *BulkRejectedError) Unwrap() error { return ErrBulkRejected }

// StatusCode returns the HTTP status carried by err, or 0 when err is not an IndexOperationError.
func StatusCode(err error) int {
	var opErr *IndexOperationError
	if errors.As(err, &opErr) {
		return opErr.Status
	}
	return 0
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
