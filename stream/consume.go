package stream

import (
	"context"
)

// Processor is a function that will process watcher events
type Processor func(context.Context, Event) error

// Consume reads events from the watcher and calls processor on each of them,
// until the process exit status has been processed.
func Consume(ctx context.Context, w *Watcher, processor Processor) (ExitStatus, error) {
	for {
		event, err := w.Read(ctx)
		if err != nil {
			return ExitStatus{}, err
		}
		err = processor(ctx, event)
		if err != nil {
			return ExitStatus{}, err
		}
		if event.Kind == EventExited {
			return event.Status, nil
		}
	}
}
