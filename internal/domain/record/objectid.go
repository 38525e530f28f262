package record

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/xid"
)

// ObjectID is the 12-byte primary-store identifier. Its canonical form is 24 lowercase hex chars.
type ObjectID [12]byte

// NilObjectID is the zero identifier.
var NilObjectID ObjectID

// NewObjectID returns a new, time-ordered identifier.
func NewObjectID() ObjectID { return ObjectID(xid.New()) }

// ParseObjectID parses the canonical hex form.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 2*len(id) {
		return NilObjectID, fmt.Errorf("object id %q: want %d hex chars, got %d", s, 2*len(id), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return NilObjectID, fmt.Errorf("object id %q: %w", s, err)
	}
	return id, nil
}

// MustParseObjectID is ParseObjectID that panics on malformed input.
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Hex returns the canonical hexadecimal form.
func (id ObjectID) Hex() string { return hex.EncodeToString(id[:]) }

func (id ObjectID) String() string { return id.Hex() }

// IsZero reports whether id is unset.
func (id ObjectID) IsZero() bool { return id == NilObjectID }

// Time returns the creation time embedded in the id (second precision).
func (id ObjectID) Time() time.Time { return xid.ID(id).Time() }

// MarshalText implements encoding.TextMarshaler.
func (id ObjectID) MarshalText() ([]byte, error) { return []byte(id.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ObjectID) UnmarshalText(b []byte) error {
	parsed, err := ParseObjectID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
