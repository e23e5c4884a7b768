package shell

import (
	"time"

	"github.com/vx-labs/shellstream/shell/stats"
	"github.com/vx-labs/shellstream/stream"
	"go.uber.org/zap"
)

// Observer is notified of process lifecycle events by a Table.
type Observer interface {
	ProcessSubmitted(info Info)
	ProcessExited(info Info, status stream.ExitStatus, err error)
}

type logObserver struct {
	logger *zap.Logger
}

// LogObserver logs process lifecycle events.
func LogObserver(logger *zap.Logger) Observer {
	return &logObserver{logger: logger}
}

func (l *logObserver) ProcessSubmitted(info Info) {
	l.logger.Info("process submitted", zap.String("process_id", info.ID), zap.String("shell_command", info.Command))
}
func (l *logObserver) ProcessExited(info Info, status stream.ExitStatus, err error) {
	fields := []zap.Field{
		zap.String("process_id", info.ID),
		zap.Stringer("exit_status", status),
		zap.Uint64("output_bytes", info.OutputBytes),
		zap.Duration("elapsed_time", elapsed(info)),
	}
	if err != nil {
		l.logger.Error("process failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Info("process exited", fields...)
}

type statsObserver struct{}

// StatsObserver records process lifecycle events as prometheus metrics.
func StatsObserver() Observer {
	return statsObserver{}
}

func (statsObserver) ProcessSubmitted(Info) {
	stats.Counter("processesSubmitted").Inc()
	stats.Gauge("runningProcesses").Inc()
}
func (statsObserver) ProcessExited(info Info, status stream.ExitStatus, _ error) {
	stats.Gauge("runningProcesses").Dec()
	stats.CounterVec("processesFinished").WithLabelValues(result(status)).Inc()
	stats.Histogram("processRunTime").Observe(float64(elapsed(info)) / float64(time.Millisecond))
}

func result(status stream.ExitStatus) string {
	switch {
	case status.Success():
		return "success"
	case status.Kind == stream.Failed:
		return "failed"
	case status.Kind == stream.ExitedWithoutCode:
		return "killed"
	default:
		return "error"
	}
}

func elapsed(info Info) time.Duration {
	if info.FinishedAt == nil {
		return time.Since(info.SubmittedAt)
	}
	return info.FinishedAt.Sub(info.SubmittedAt)
}
