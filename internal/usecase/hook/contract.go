package hook

import (
	"context"

	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	"github.com/kailas-cloud/docsync/internal/usecase/indexer"
)

// Resolver yields the effective search options of a collection.
type Resolver interface {
	Resolve(collection string) (endpoint.Options, error)
}

// Indexer mirrors single records into the search engine.
type Indexer interface {
	Index(ctx context.Context, rec *record.Record, o endpoint.Options) indexer.Result
	Unindex(ctx context.Context, rec *record.Record, o endpoint.Options) indexer.Result
}
