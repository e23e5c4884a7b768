package shell

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrProcessRunning  = errors.New("process is still running")
	ErrEmptyCommand    = errors.New("empty command")
	ErrTableClosed     = errors.New("process table closed")
)

type tableEntry struct {
	process *Process
	cancel  context.CancelFunc
}

// Table owns the processes started by a server, indexed by id.
type Table struct {
	mtx        sync.RWMutex
	closed     bool
	processes  map[string]tableEntry
	entropy    io.Reader
	ctx        context.Context
	cancel     context.CancelFunc
	operations *Operations
	observers  []Observer
	opts       []processOpts
	logger     *zap.Logger
}

// NewTable returns a table whose processes are started with opts, and run
// until ctx is cancelled or the table is closed.
func NewTable(ctx context.Context, observers []Observer, opts ...processOpts) *Table {
	ctx, cancel := context.WithCancel(ctx)
	logger := L(ctx)
	return &Table{
		processes:  map[string]tableEntry{},
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		ctx:        ctx,
		cancel:     cancel,
		operations: NewOperations(ctx, logger),
		observers:  observers,
		opts:       append([]processOpts{WithLogger(logger)}, opts...),
		logger:     logger,
	}
}

// Submit registers a new process running command and starts it.
func (t *Table) Submit(command string) (*Process, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.closed {
		return nil, ErrTableClosed
	}
	id := ulid.MustNew(ulid.Timestamp(time.Now()), t.entropy).String()
	process := NewProcess(id, command, t.opts...)
	ctx, cancel := context.WithCancel(t.ctx)
	t.processes[id] = tableEntry{process: process, cancel: cancel}

	info := process.Info()
	for _, observer := range t.observers {
		observer.ProcessSubmitted(info)
	}
	t.operations.Run(fmt.Sprintf("process %s", id), func(context.Context) {
		defer cancel()
		status, err := process.Run(ctx)
		info := process.Info()
		for _, observer := range t.observers {
			observer.ProcessExited(info, status, err)
		}
	})
	return process, nil
}

func (t *Table) Get(id string) (*Process, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	entry, ok := t.processes[id]
	if !ok {
		return nil, ErrProcessNotFound
	}
	return entry.process, nil
}

// List describes every known process, oldest first.
func (t *Table) List() []Info {
	t.mtx.RLock()
	out := make([]Info, 0, len(t.processes))
	for _, entry := range t.processes {
		out = append(out, entry.process.Info())
	}
	t.mtx.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Kill cancels a process context. Killing a finished process has no effect.
func (t *Table) Kill(id string) error {
	t.mtx.RLock()
	entry, ok := t.processes[id]
	t.mtx.RUnlock()
	if !ok {
		return ErrProcessNotFound
	}
	entry.cancel()
	return nil
}

// Remove forgets a finished process and releases its output.
func (t *Table) Remove(id string) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	entry, ok := t.processes[id]
	if !ok {
		return ErrProcessNotFound
	}
	if _, finished := entry.process.Status(); !finished {
		return ErrProcessRunning
	}
	delete(t.processes, id)
	return nil
}

// Close refuses new submissions, kills every running process and waits for
// them to be reaped.
func (t *Table) Close() {
	t.mtx.Lock()
	t.closed = true
	t.mtx.Unlock()
	t.cancel()
	t.operations.Wait()
	t.logger.Debug("process table closed")
}
