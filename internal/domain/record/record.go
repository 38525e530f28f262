package record

import "maps"

// IDField is the key under which a record id appears in stored and inlined snapshots.
const IDField = "_id"

// Record is a primary-store document: an id, the collection it belongs to and its fields.
// Field values may be plain JSON values, ObjectIDs, time.Time, Refs, or nested maps/slices of those.
type Record struct {
	ID         ObjectID
	Collection string
	Fields     map[string]any
}

// New creates a record with a fresh id. The fields map is copied.
func New(collection string, fields map[string]any) *Record {
	return &Record{ID: NewObjectID(), Collection: collection, Fields: maps.Clone(fields)}
}

// Clone returns a copy whose top-level fields map can be modified independently.
func (r *Record) Clone() *Record {
	return &Record{ID: r.ID, Collection: r.Collection, Fields: maps.Clone(r.Fields)}
}

// Get returns a field value.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Set assigns a field value.
func (r *Record) Set(key string, v any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = v
}

// Ref is a foreign-key reference to another record. When Doc is set the reference is
// populated and serializes to the referenced record's fields; otherwise to the id alone.
type Ref struct {
	ID  ObjectID
	Doc *Record
}

// RefTo returns an unpopulated reference.
func RefTo(id ObjectID) Ref { return Ref{ID: id} }

// Populated returns a reference carrying the referenced record.
func Populated(doc *Record) Ref { return Ref{ID: doc.ID, Doc: doc} }

// IsPopulated reports whether the referenced record is attached.
func (r Ref) IsPopulated() bool { return r.Doc != nil }
