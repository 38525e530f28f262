package docsync

import (
	"context"
	"fmt"
	"reflect"
)

// TypedCollection is a generic, schema-first collection backed by a docsync Client.
// Schema is inferred from T's struct tags at construction time.
type TypedCollection[T any] struct {
	name   string
	client *Client
	meta   *schemaMeta
}

// NewCollection creates a typed handle for the given collection name.
// T must be a struct with docsync tags and exactly one ObjectID field tagged `docsync:",id"`.
func NewCollection[T any](client *Client, name string) (*TypedCollection[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new collection %q: %w", name, err)
	}
	return &TypedCollection[T]{name: name, client: client, meta: meta}, nil
}

// Save creates or replaces item. When item has no id one is assigned and written back.
// Returns true if created.
func (c *TypedCollection[T]) Save(ctx context.Context, item *T) (bool, error) {
	rec := c.meta.toRecord(c.name, item)
	created, err := c.client.Records(c.name).Save(ctx, rec)
	if err != nil {
		return false, err
	}
	reflect.ValueOf(item).Elem().Field(c.meta.idIdx).Set(reflect.ValueOf(rec.ID))
	return created, nil
}

// Get retrieves a typed item by id.
func (c *TypedCollection[T]) Get(ctx context.Context, id ObjectID) (T, error) {
	var zero T
	rec, err := c.client.Records(c.name).Get(ctx, id)
	if err != nil {
		return zero, err
	}
	return c.decode(rec)
}

// Delete removes an item by id.
func (c *TypedCollection[T]) Delete(ctx context.Context, id ObjectID) error {
	return c.client.Records(c.name).Delete(ctx, id)
}

// Each calls fn for every item of the collection.
func (c *TypedCollection[T]) Each(ctx context.Context, fn func(T) error) error {
	return c.client.Records(c.name).Each(ctx, func(rec *Record) error {
		item, err := c.decode(rec)
		if err != nil {
			return err
		}
		return fn(item)
	})
}

// Resync rebuilds the collection's search index.
func (c *TypedCollection[T]) Resync(ctx context.Context) (ResyncReport, error) {
	return c.client.Resync(ctx, c.name)
}

func (c *TypedCollection[T]) decode(rec *Record) (T, error) {
	var zero T
	v, err := c.meta.fromRecord(rec)
	if err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", c.name, rec.ID.Hex(), err)
	}
	item, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("decode %s/%s: type assertion failed", c.name, rec.ID.Hex())
	}
	return item, nil
}
