package shell

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Operations supervises a group of long-running goroutines sharing a context.
type Operations struct {
	ctx    context.Context
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewOperations(ctx context.Context, logger *zap.Logger) *Operations {
	return &Operations{ctx: ctx, logger: logger}
}

// Run starts f in a new goroutine. A panic in f is logged and does not
// propagate.
func (o *Operations) Run(name string, f func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("operation panicked", zap.String("operation_name", name), zap.Any("panic", r))
			}
		}()
		o.logger.Debug("operation started", zap.String("operation_name", name))
		f(o.ctx)
		o.logger.Debug("operation stopped", zap.String("operation_name", name))
	}()
}

// Wait blocks until every operation has returned.
func (o *Operations) Wait() {
	o.wg.Wait()
}
