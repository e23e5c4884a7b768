package stream

import (
	"context"
	"sync"
)

// Signal is a coalescing change notification. Notify bumps a version and wakes
// every waiter; several notifications between two waits collapse into one
// wake-up, so waiters must re-check the state they care about after waking.
type Signal struct {
	mtx     sync.Mutex
	version uint64
	changed chan struct{}
}

func NewSignal() *Signal {
	return &Signal{changed: make(chan struct{})}
}

func (s *Signal) Notify() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.version++
	old := s.changed
	s.changed = make(chan struct{})
	close(old)
}

func (s *Signal) Version() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.version
}

// Changed returns a channel closed by the first notification following the
// given version. The channel is already closed if the version moved on.
func (s *Signal) Changed(since uint64) <-chan struct{} {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.version != since {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.changed
}

// Wait blocks until the version differs from since, and returns the new
// version.
func (s *Signal) Wait(ctx context.Context, since uint64) (uint64, error) {
	select {
	case <-s.Changed(since):
		return s.Version(), nil
	case <-ctx.Done():
		return since, ctx.Err()
	}
}
