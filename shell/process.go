package shell

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vx-labs/shellstream/commitlog"
	"github.com/vx-labs/shellstream/shell/stats"
	"github.com/vx-labs/shellstream/stream"
	"go.uber.org/zap"
)

const DefaultReadBufferSize = 4096

var (
	ErrSpawnFailed = errors.New("failed to spawn process")
	ErrWaitFailed  = errors.New("failed to wait for process")
)

type ProcessOpts struct {
	Shell          []string
	BlockSize      int
	ReadBufferSize int
	Logger         *zap.Logger
}

type processOpts func(*ProcessOpts)

// WithShell sets the interpreter and its arguments. The command is appended
// as the last argument.
func WithShell(shell ...string) processOpts {
	return func(o *ProcessOpts) {
		if len(shell) > 0 {
			o.Shell = shell
		}
	}
}
func WithBlockSize(v int) processOpts {
	return func(o *ProcessOpts) { o.BlockSize = v }
}
func WithReadBufferSize(v int) processOpts {
	return func(o *ProcessOpts) { o.ReadBufferSize = v }
}
func WithLogger(l *zap.Logger) processOpts {
	return func(o *ProcessOpts) { o.Logger = l }
}

// Info is a point-in-time description of a process.
type Info struct {
	ID          string             `json:"id"`
	Command     string             `json:"command"`
	PID         int                `json:"pid,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
	Running     bool               `json:"running"`
	Status      *stream.ExitStatus `json:"status,omitempty"`
	OutputBytes uint64             `json:"output_bytes"`
	BlockCount  uint64             `json:"block_count"`
}

// Process runs one shell command and records everything it writes on
// stdout and stderr into a shared stream.State.
type Process struct {
	id          string
	command     string
	opts        ProcessOpts
	state       *stream.State
	submittedAt time.Time
	done        chan struct{}

	mtx        sync.Mutex
	pid        int
	finishedAt time.Time
	started    bool
}

func NewProcess(id, command string, opts ...processOpts) *Process {
	config := ProcessOpts{
		Shell:          defaultShell,
		BlockSize:      commitlog.DefaultBlockSize,
		ReadBufferSize: DefaultReadBufferSize,
		Logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}
	return &Process{
		id:          id,
		command:     command,
		opts:        config,
		state:       stream.NewState(config.BlockSize),
		submittedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

func (p *Process) ID() string      { return p.id }
func (p *Process) Command() string { return p.command }

// Done is closed once Run has returned.
func (p *Process) Done() <-chan struct{} { return p.done }

// Watch returns a watcher reading the process output from offset zero.
func (p *Process) Watch() *stream.Watcher { return p.state.Watch() }

// Status returns the exit status, if the process has terminated.
func (p *Process) Status() (stream.ExitStatus, bool) { return p.state.Status() }

// Snapshot copies the output captured so far.
func (p *Process) Snapshot() []byte { return p.state.Snapshot() }

func (p *Process) Info() Info {
	logStats := p.state.GetStatistics()
	p.mtx.Lock()
	info := Info{
		ID:          p.id,
		Command:     p.command,
		PID:         p.pid,
		SubmittedAt: p.submittedAt,
		OutputBytes: logStats.StoredBytes,
		BlockCount:  logStats.BlockCount,
	}
	if !p.finishedAt.IsZero() {
		finishedAt := p.finishedAt
		info.FinishedAt = &finishedAt
	}
	p.mtx.Unlock()
	if status, ok := p.state.Status(); ok {
		info.Status = &status
	} else {
		info.Running = true
	}
	return info
}

// Run spawns the command, captures its output until both output streams are
// closed, waits for it and records its exit status. The exit status is always
// recorded, so watchers terminate even when spawning or waiting fails; the
// returned error then wraps ErrSpawnFailed or ErrWaitFailed.
// Run may only be called once.
func (p *Process) Run(ctx context.Context) (stream.ExitStatus, error) {
	p.mtx.Lock()
	if p.started {
		p.mtx.Unlock()
		return stream.ExitStatus{}, errors.New("process already started")
	}
	p.started = true
	p.mtx.Unlock()
	defer close(p.done)

	logger := p.opts.Logger.With(zap.String("process_id", p.id))
	cmd := shellCommand(ctx, p.opts.Shell, p.command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return p.fail(ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return p.fail(ErrSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return p.fail(ErrSpawnFailed, err)
	}
	p.mtx.Lock()
	p.pid = cmd.Process.Pid
	p.mtx.Unlock()
	logger.Debug("process started", zap.Int("pid", cmd.Process.Pid))

	var wg sync.WaitGroup
	wg.Add(2)
	go p.drain(&wg, "stdout", stdout, logger)
	go p.drain(&wg, "stderr", stderr, logger)
	wg.Wait()

	err = cmd.Wait()
	if cmd.ProcessState == nil {
		return p.fail(ErrWaitFailed, err)
	}
	if err != nil {
		logger.Debug("process wait reported an error", zap.Error(err))
	}
	status := exitStatus(cmd.ProcessState)
	p.finish(status)
	return status, nil
}

func (p *Process) drain(wg *sync.WaitGroup, name string, r io.Reader, logger *zap.Logger) {
	defer wg.Done()
	buf := make([]byte, p.opts.ReadBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.state.Write(buf[:n])
			stats.CounterVec("outputBytes").WithLabelValues(name).Add(float64(n))
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, os.ErrClosed) {
				stats.Counter("streamReadErrors").Inc()
				logger.Debug("failed to read process output",
					zap.String("output_stream", name), zap.Error(err))
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

func (p *Process) finish(status stream.ExitStatus) {
	p.mtx.Lock()
	p.finishedAt = time.Now()
	p.mtx.Unlock()
	p.state.Finish(status)
}

// runError reads as "<cause>: <err>", cause being one of the sentinels.
type runError struct {
	cause error
	err   error
}

func (e *runError) Error() string { return e.cause.Error() + ": " + e.err.Error() }
func (e *runError) Cause() error  { return e.cause }
func (e *runError) Unwrap() error { return e.cause }

func (p *Process) fail(cause error, err error) (stream.ExitStatus, error) {
	wrapped := &runError{cause: cause, err: err}
	status := stream.FailedWith(wrapped)
	p.finish(status)
	return status, wrapped
}

// exitStatus maps the state reported by the OS to an exit status. A process
// terminated by a signal has no exit code.
func exitStatus(state *os.ProcessState) stream.ExitStatus {
	if code := state.ExitCode(); code >= 0 {
		return stream.ExitCode(code)
	}
	return stream.NoExitCode()
}
