package stream

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PerformanceLogger wraps processor and logs how many bytes were forwarded,
// and how long it took, once the exit status is reached.
func PerformanceLogger(logger *zap.Logger, processor Processor) Processor {
	start := time.Now()
	var forwarded int
	return func(ctx context.Context, event Event) error {
		err := processor(ctx, event)
		if err != nil {
			logger.Debug("watcher processing failed", zap.Int("forwarded_bytes", forwarded), zap.Error(err))
			return err
		}
		switch event.Kind {
		case EventOutput:
			forwarded += len(event.Chunk)
		case EventExited:
			logger.Debug("watcher drained",
				zap.Int("forwarded_bytes", forwarded),
				zap.Duration("elapsed_time", time.Since(start)),
				zap.Stringer("exit_status", event.Status))
		}
		return nil
	}
}
