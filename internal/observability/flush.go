package observability

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Flusher pushes buffered output (e.g. pending alert publishes) before exit.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushTelemetry flushes the given flushers, then the logger. Metrics are pulled
// by Prometheus and need no flush. Call during graceful shutdown after in-flight
// requests have drained. All flushers run even if one fails.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, flushers ...Flusher) error {
	var errs []error
	for _, f := range flushers {
		if f == nil {
			continue
		}
		if err := f.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
