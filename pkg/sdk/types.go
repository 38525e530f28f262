package docsync

import (
	"time"

	"github.com/kailas-cloud/docsync/internal/config"
	"github.com/kailas-cloud/docsync/internal/domain/record"
)

// Record is one primary-store document. Fields may hold scalars, time.Time, ObjectID,
// Ref, slices and string-keyed maps of those.
type Record = record.Record

// ObjectID is a 12-byte record identifier.
type ObjectID = record.ObjectID

// Ref is a reference to another record. Populated refs are indexed inline.
type Ref = record.Ref

// SearchOptions addresses a search engine index. Zero fields fall back to the
// global options, then to built-in defaults.
type SearchOptions = config.SearchOptions

// NewRecord returns a record with a fresh id.
func NewRecord(collection string, fields map[string]any) *Record {
	return record.New(collection, fields)
}

// NewObjectID returns a fresh, time-ordered id.
func NewObjectID() ObjectID { return record.NewObjectID() }

// ParseObjectID parses a 24-character hex id.
func ParseObjectID(s string) (ObjectID, error) {
	return record.ParseObjectID(s) //nolint:wrapcheck // re-export
}

// RefTo returns an unpopulated reference to id.
func RefTo(id ObjectID) Ref { return record.RefTo(id) }

// Populated returns a reference that inlines doc when indexed.
func Populated(doc *Record) Ref { return record.Populated(doc) }

// ResyncReport describes one resync run.
type ResyncReport struct {
	Collection string
	Alias      string
	Generation string
	Previous   []string
	Documents  int
	Batches    int
	// CleanupErr is set when old generations could not be deleted after a successful swap.
	CleanupErr error
	Duration   time.Duration
}
