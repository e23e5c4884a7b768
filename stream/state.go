package stream

import (
	"bytes"
	"sync"

	"github.com/vx-labs/shellstream/commitlog"
)

// Data is the state shared between a process runner and its watchers.
type Data struct {
	Output *commitlog.Log
	Status *ExitStatus
}

// State guards Data with a single mutex and pairs it with a Signal notified
// after every modification.
type State struct {
	mtx    sync.Mutex
	data   Data
	signal *Signal
}

func NewState(blockSize int) *State {
	return &State{
		data:   Data{Output: commitlog.New(blockSize)},
		signal: NewSignal(),
	}
}

// ReadModify applies fn under the state lock, then notifies the signal, even
// if fn did not change anything.
func (s *State) ReadModify(fn func(*Data)) {
	s.mtx.Lock()
	fn(&s.data)
	s.mtx.Unlock()
	s.signal.Notify()
}

// Read applies fn under the state lock and returns the signal version
// observed at that time. fn must not modify the data.
func (s *State) Read(fn func(Data)) uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	fn(s.data)
	return s.signal.Version()
}

// Write appends p to the output log.
func (s *State) Write(p []byte) (int, error) {
	s.ReadModify(func(d *Data) {
		d.Output.Append(p)
	})
	return len(p), nil
}

// Finish records the exit status. Only the first call has an effect.
func (s *State) Finish(status ExitStatus) bool {
	recorded := false
	s.ReadModify(func(d *Data) {
		if d.Status == nil {
			d.Status = &status
			recorded = true
		}
	})
	return recorded
}

func (s *State) Status() (ExitStatus, bool) {
	var status ExitStatus
	var ok bool
	s.Read(func(d Data) {
		if d.Status != nil {
			status, ok = *d.Status, true
		}
	})
	return status, ok
}

func (s *State) GetStatistics() commitlog.Statistics {
	var stats commitlog.Statistics
	s.Read(func(d Data) {
		stats = d.Output.GetStatistics()
	})
	return stats
}

// Snapshot copies the output captured so far.
func (s *State) Snapshot() []byte {
	buf := bytes.Buffer{}
	s.Read(func(d Data) {
		buf.Grow(int(d.Output.Len()))
		d.Output.WriteTo(&buf)
	})
	return buf.Bytes()
}

func (s *State) Signal() *Signal {
	return s.signal
}

// Watch returns a new watcher reading from the beginning of the output.
func (s *State) Watch() *Watcher {
	return &Watcher{state: s}
}
