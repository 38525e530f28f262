package record

import (
	"reflect"
	"strings"
	"time"
)

// TimeLayout is ISO-8601 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// Extended JSON tags. A typed value travels as a single-key object, e.g. {"$oid": "<hex>"}.
const (
	TagObjectID = "$oid"
	TagDate     = "$date"
	TagRef      = "$ref"
)

// ToExtended converts field values into a JSON-encodable tree in which ids, times and
// references are tagged so FromExtended can restore them. Typed slices, arrays, maps
// and structs are walked like their untyped forms, so a []Ref or a struct holding a
// time is tagged as well. References lose their populated document and keep only the id.
func ToExtended(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, float64, int, int64:
		return t
	case ObjectID:
		return map[string]any{TagObjectID: t.Hex()}
	case time.Time:
		return map[string]any{TagDate: FormatTime(t)}
	case Ref:
		return map[string]any{TagRef: t.ID.Hex()}
	case Record:
		return map[string]any{TagRef: t.ID.Hex()}
	case *Record:
		if t == nil {
			return nil
		}
		return map[string]any{TagRef: t.ID.Hex()}
	case map[string]any:
		if t == nil {
			return nil
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = ToExtended(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = ToExtended(val)
		}
		return out
	}
	return extendedValue(reflect.ValueOf(v))
}

func extendedValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return ToExtended(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface()
		}
		return sequence(rv, ToExtended)
	case reflect.Array:
		return sequence(rv, ToExtended)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return rv.Interface()
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = ToExtended(iter.Value().Interface())
		}
		return out
	case reflect.Struct:
		return StructMap(rv, ToExtended)
	default:
		return rv.Interface()
	}
}

func sequence(rv reflect.Value, conv func(any) any) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = conv(rv.Index(i).Interface())
	}
	return out
}

// StructMap converts the exported fields of a struct into a map keyed by FieldName,
// passing each value through conv.
func StructMap(rv reflect.Value, conv func(any) any) map[string]any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		name := FieldName(t.Field(i))
		if name == "" {
			continue
		}
		out[name] = conv(rv.Field(i).Interface())
	}
	return out
}

// FieldName is the key a struct field gets inside a record: its json tag name, or the
// Go name when untagged. Unexported fields and fields tagged "-" get "".
func FieldName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return f.Name
}

// FromExtended restores tagged values in a decoded JSON tree. Objects that only look
// like tags (wrong type, unparsable value, extra keys) stay plain maps.
func FromExtended(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if typed, ok := fromTagged(t); ok {
			return typed
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = FromExtended(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = FromExtended(val)
		}
		return out
	default:
		return v
	}
}

func fromTagged(m map[string]any) (any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	for tag, raw := range m {
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		switch tag {
		case TagObjectID:
			if id, err := ParseObjectID(s); err == nil {
				return id, true
			}
		case TagRef:
			if id, err := ParseObjectID(s); err == nil {
				return RefTo(id), true
			}
		case TagDate:
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return nil, false
}
