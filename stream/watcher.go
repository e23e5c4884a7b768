package stream

import (
	"context"

	"github.com/vx-labs/shellstream/commitlog"
)

// Watcher is a private cursor over a State. A Watcher must be used by a single
// goroutine; create one per consumer.
type Watcher struct {
	state *State
	pos   commitlog.Position
}

func (w *Watcher) Position() commitlog.Position {
	return w.pos
}

// Read blocks until output is available past the cursor or the process
// exited. Pending output is always returned before the exit status. Once the
// exit status has been returned, every later call returns it again.
func (w *Watcher) Read(ctx context.Context) (Event, error) {
	for {
		var event Event
		found := false
		version := w.state.Read(func(d Data) {
			if next, chunk, ok := d.Output.ReadChunk(w.pos); ok {
				w.pos = next
				event = Event{Kind: EventOutput, Chunk: chunk}
				found = true
			} else if d.Status != nil {
				event = Event{Kind: EventExited, Status: *d.Status}
				found = true
			}
		})
		if found {
			return event, nil
		}
		if _, err := w.state.signal.Wait(ctx, version); err != nil {
			return Event{}, err
		}
	}
}
