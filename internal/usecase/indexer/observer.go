package indexer

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/logger"
)

// NopObserver ignores every result.
type NopObserver struct{}

func (NopObserver) OnIndexed(context.Context, Result)   {}
func (NopObserver) OnUnindexed(context.Context, Result) {}
func (NopObserver) OnError(context.Context, Result)     {}

// LogObserver reports results through zap. Successes log at debug, failures at error.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a LogObserver. A logger carried by the context takes precedence.
func NewLogObserver(l *zap.Logger) *LogObserver {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogObserver{logger: l}
}

func (o *LogObserver) log(ctx context.Context, r Result) *zap.Logger {
	return logger.ForCollection(logger.FromContext(ctx, o.logger), r.Collection, r.ID)
}

// OnIndexed logs a successful upsert.
func (o *LogObserver) OnIndexed(ctx context.Context, r Result) {
	o.log(ctx, r).Debug("Document indexed", zap.Int("status", r.Status))
}

// OnUnindexed logs a successful removal.
func (o *LogObserver) OnUnindexed(ctx context.Context, r Result) {
	o.log(ctx, r).Debug("Document unindexed", zap.Int("status", r.Status))
}

// OnError logs a failed operation with the request that caused it.
func (o *LogObserver) OnError(ctx context.Context, r Result) {
	fields := []zap.Field{
		zap.String("operation", string(r.Operation)),
		zap.Error(r.Err),
	}
	if r.Request.URL != "" {
		fields = append(fields, zap.Stringer("request", r.Request))
	}
	if status := domain.StatusCode(r.Err); status != 0 {
		fields = append(fields, zap.Int("status", status))
	}
	o.log(ctx, r).Error("Search index write failed", fields...)
}
