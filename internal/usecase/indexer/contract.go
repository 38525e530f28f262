package indexer

import (
	"context"

	"github.com/kailas-cloud/docsync/internal/domain"
)

// Sender performs one search engine request.
type Sender interface {
	Send(ctx context.Context, req domain.Request) (domain.Response, error)
}

// Observer receives the outcome of every index and unindex operation.
// Implementations must be safe for concurrent use.
type Observer interface {
	OnIndexed(ctx context.Context, r Result)
	OnUnindexed(ctx context.Context, r Result)
	OnError(ctx context.Context, r Result)
}
