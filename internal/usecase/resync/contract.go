package resync

import (
	"context"

	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/generation"
	"github.com/kailas-cloud/docsync/internal/domain/record"
)

// Engine is the index management surface of the search engine.
// Index arguments are addressed by their full index name.
type Engine interface {
	IndexExists(ctx context.Context, o endpoint.Options) (bool, error)
	ResolveAlias(ctx context.Context, o endpoint.Options, alias string) ([]string, error)
	CreateIndex(ctx context.Context, o endpoint.Options) error
	Bulk(ctx context.Context, o endpoint.Options, body []byte) (generation.BulkResult, error)
	UpdateAliases(ctx context.Context, o endpoint.Options, actions []generation.AliasAction) error
	DeleteIndex(ctx context.Context, o endpoint.Options) error
}

// Source enumerates every record of a collection in batches of at most batchSize.
// fn must not retain the batch slice; returning an error stops the iteration.
type Source interface {
	Iterate(ctx context.Context, collection string, batchSize int, fn func([]*record.Record) error) error
}

// Resolver yields the effective search options of a collection.
type Resolver interface {
	Resolve(collection string) (endpoint.Options, error)
}
