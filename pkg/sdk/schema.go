package docsync

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/docsync/internal/domain/record"
)

const tagKey = "docsync"

var (
	objectIDType = reflect.TypeOf(record.ObjectID{})
	refType      = reflect.TypeOf(record.Ref{})
	timeType     = reflect.TypeOf(time.Time{})
)

// schemaMeta holds parsed struct tag metadata, cached per TypedCollection.
type schemaMeta struct {
	typ    reflect.Type // struct type for reconstruction
	idIdx  int
	fields []fieldMapping
}

type fieldMapping struct {
	structIdx int
	name      string
	omitEmpty bool
}

// parseSchema reflects on T and extracts docsync struct tag metadata.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("docsync: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t, idIdx: -1}
	seen := make(map[string]string)

	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("docsync: tagged field %s is not exported", f.Name)
		}
		if err := applyTag(meta, i, f, tag, seen); err != nil {
			return nil, err
		}
	}

	if meta.idIdx == -1 {
		return nil, fmt.Errorf("docsync: no field with `docsync:\",id\"` tag in %s", t)
	}
	return meta, nil
}

// applyTag processes a single struct field's docsync tag.
func applyTag(meta *schemaMeta, idx int, f reflect.StructField, tag string, seen map[string]string) error {
	name, modifier, _ := strings.Cut(tag, ",")

	switch modifier {
	case "id":
		if meta.idIdx != -1 {
			return fmt.Errorf("docsync: duplicate id tag on field %s", f.Name)
		}
		if f.Type != objectIDType {
			return fmt.Errorf("docsync: id field %s must be an ObjectID, got %s", f.Name, f.Type)
		}
		meta.idIdx = idx
		return nil
	case "", "omitempty":
	default:
		return fmt.Errorf("docsync: unknown modifier %q on field %s", modifier, f.Name)
	}

	if name == "" || name == record.IDField {
		return fmt.Errorf("docsync: field %s needs a record field name other than %q", f.Name, record.IDField)
	}
	if other, dup := seen[name]; dup {
		return fmt.Errorf("docsync: fields %s and %s both map to %q", other, f.Name, name)
	}
	seen[name] = f.Name
	meta.fields = append(meta.fields, fieldMapping{structIdx: idx, name: name, omitEmpty: modifier == "omitempty"})
	return nil
}

// toRecord converts a typed struct to a record of collection.
func (m *schemaMeta) toRecord(collection string, item any) *record.Record {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	fields := make(map[string]any, len(m.fields))
	for _, fm := range m.fields {
		fv := v.Field(fm.structIdx)
		if fm.omitEmpty && fv.IsZero() {
			continue
		}
		fields[fm.name] = fv.Interface()
	}

	id, _ := v.Field(m.idIdx).Interface().(record.ObjectID)
	return &record.Record{ID: id, Collection: collection, Fields: fields}
}

// fromRecord converts a stored record back to a typed struct.
func (m *schemaMeta) fromRecord(rec *record.Record) (any, error) {
	v := reflect.New(m.typ).Elem()
	v.Field(m.idIdx).Set(reflect.ValueOf(rec.ID))

	for _, fm := range m.fields {
		val, ok := rec.Fields[fm.name]
		if !ok || val == nil {
			continue
		}
		if err := assign(v.Field(fm.structIdx), val); err != nil {
			return nil, fmt.Errorf("field %q: %w", fm.name, err)
		}
	}
	return v.Interface(), nil
}

// assign stores a decoded record value into dst, converting the shapes the store
// hands back (json.Number, []any, map[string]any) to dst's type.
func assign(dst reflect.Value, val any) error {
	src := reflect.ValueOf(val)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	switch v := val.(type) {
	case json.Number:
		return assignNumber(dst, v)
	case record.Ref:
		if dst.Type() == objectIDType {
			dst.Set(reflect.ValueOf(v.ID))
			return nil
		}
	case record.ObjectID:
		if dst.Type() == refType {
			dst.Set(reflect.ValueOf(record.RefTo(v)))
			return nil
		}
	case []any:
		if dst.Kind() == reflect.Slice {
			out := reflect.MakeSlice(dst.Type(), len(v), len(v))
			for i, el := range v {
				if el == nil {
					continue
				}
				if err := assign(out.Index(i), el); err != nil {
					return fmt.Errorf("index %d: %w", i, err)
				}
			}
			dst.Set(out)
			return nil
		}
	case map[string]any:
		if dst.Kind() == reflect.Map && dst.Type().Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(dst.Type(), len(v))
			for k, el := range v {
				ev := reflect.New(dst.Type().Elem()).Elem()
				if el != nil {
					if err := assign(ev, el); err != nil {
						return fmt.Errorf("key %q: %w", k, err)
					}
				}
				out.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), ev)
			}
			dst.Set(out)
			return nil
		}
		if dst.Kind() == reflect.Struct && dst.Type() != timeType && dst.Type() != refType {
			return assignStruct(dst, v)
		}
	}

	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), val); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	if src.Type().ConvertibleTo(dst.Type()) && src.Kind() == dst.Kind() {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", val, dst.Type())
}

// assignStruct fills a nested struct from its stored map, keyed by record.FieldName.
func assignStruct(dst reflect.Value, m map[string]any) error {
	t := dst.Type()
	for i := range t.NumField() {
		name := record.FieldName(t.Field(i))
		el, ok := m[name]
		if name == "" || !ok || el == nil {
			continue
		}
		if err := assign(dst.Field(i), el); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

func assignNumber(dst reflect.Value, n json.Number) error {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(n.String(), 10, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("number %s: %w", n, err)
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(n.String(), 10, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("number %s: %w", n, err)
		}
		dst.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(n.String(), dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("number %s: %w", n, err)
		}
		dst.SetFloat(f)
	case reflect.Interface:
		dst.Set(reflect.ValueOf(n))
	default:
		return fmt.Errorf("cannot assign number to %s", dst.Type())
	}
	return nil
}
