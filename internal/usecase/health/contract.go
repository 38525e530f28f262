package health

import "context"

// DBPinger checks primary store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// SearchChecker checks search engine availability.
type SearchChecker interface {
	HealthCheck(ctx context.Context) error
}
