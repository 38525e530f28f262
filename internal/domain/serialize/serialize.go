// Package serialize turns primary-store records into plain JSON-compatible value trees.
package serialize

import (
	"reflect"
	"time"

	"github.com/kailas-cloud/docsync/internal/domain/record"
)

// TimeLayout is ISO-8601 in UTC with millisecond precision.
const TimeLayout = record.TimeLayout

// Value converts v into a tree of maps, slices and scalars. ObjectIDs become their hex
// form, times become ISO-8601 strings, populated references are inlined and bare ones
// become hex ids. Structs become maps keyed by record.FieldName. The input is never
// modified. Value is idempotent.
func Value(v any) any {
	w := walker{path: make(map[record.ObjectID]bool)}
	return w.value(v)
}

// Document returns the plain snapshot of r that is sent to the search engine.
// The record id is excluded: it addresses the document, it is not part of it.
func Document(r *record.Record) map[string]any {
	w := walker{path: map[record.ObjectID]bool{r.ID: true}}
	out := w.fields(r.Fields)
	delete(out, record.IDField)
	return out
}

// Time formats t the way the search engine receives it.
func Time(t time.Time) string { return record.FormatTime(t) }

// walker tracks the records on the current inlining path so reference cycles
// collapse to ids instead of recursing forever.
type walker struct {
	path map[record.ObjectID]bool
}

func (w walker) value(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32, int, int64, int32, uint64, uint32:
		return t
	case record.ObjectID:
		return t.Hex()
	case time.Time:
		return Time(t)
	case record.Ref:
		return w.ref(t)
	case record.Record:
		return w.inline(&t)
	case *record.Record:
		if t == nil {
			return nil
		}
		return w.inline(t)
	case map[string]any:
		return w.fields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = w.value(e)
		}
		return out
	}
	return w.reflected(v)
}

func (w walker) reflected(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return w.value(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		return w.sequence(rv)
	case reflect.Array:
		return w.sequence(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = w.value(iter.Value().Interface())
		}
		return out
	case reflect.Struct:
		return record.StructMap(rv, w.value)
	default:
		return v
	}
}

func (w walker) sequence(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = w.value(rv.Index(i).Interface())
	}
	return out
}

func (w walker) fields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = w.value(v)
	}
	return out
}

func (w walker) ref(r record.Ref) any {
	if r.Doc == nil {
		return r.ID.Hex()
	}
	return w.inline(r.Doc)
}

func (w walker) inline(r *record.Record) any {
	if w.path[r.ID] {
		return r.ID.Hex()
	}
	w.path[r.ID] = true
	defer delete(w.path, r.ID)

	out := w.fields(r.Fields)
	out[record.IDField] = r.ID.Hex()
	return out
}
