package stream

import (
	"fmt"

	"github.com/pkg/errors"
)

type ExitKind int

const (
	// ExitedWithCode means the process terminated and reported an exit code.
	ExitedWithCode ExitKind = iota
	// ExitedWithoutCode means the process terminated without exit code, usually
	// because it was killed by a signal.
	ExitedWithoutCode
	// Failed means the process could not be started or waited for.
	Failed
)

var exitKindNames = map[ExitKind]string{
	ExitedWithCode:    "exit_code",
	ExitedWithoutCode: "no_exit_code",
	Failed:            "failed",
}

func (k ExitKind) String() string {
	if name, ok := exitKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

func (k ExitKind) MarshalText() ([]byte, error) {
	if name, ok := exitKindNames[k]; ok {
		return []byte(name), nil
	}
	return nil, errors.Errorf("invalid exit kind %d", int(k))
}

func (k *ExitKind) UnmarshalText(b []byte) error {
	for kind, name := range exitKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return errors.Errorf("invalid exit kind %q", string(b))
}

// ExitStatus is the recorded outcome of a process.
type ExitStatus struct {
	Kind   ExitKind `json:"kind"`
	Code   int      `json:"code"`
	Reason string   `json:"reason,omitempty"`
}

func ExitCode(code int) ExitStatus {
	return ExitStatus{Kind: ExitedWithCode, Code: code}
}

func NoExitCode() ExitStatus {
	return ExitStatus{Kind: ExitedWithoutCode}
}

func FailedWith(err error) ExitStatus {
	return ExitStatus{Kind: Failed, Reason: err.Error()}
}

func (s ExitStatus) Success() bool {
	return s.Kind == ExitedWithCode && s.Code == 0
}

func (s ExitStatus) String() string {
	switch s.Kind {
	case ExitedWithCode:
		return fmt.Sprintf("exit code %d", s.Code)
	case ExitedWithoutCode:
		return "no exit code"
	default:
		return fmt.Sprintf("failed: %s", s.Reason)
	}
}

// Message is the human readable termination line sent after the output of a
// process.
func (s ExitStatus) Message() string {
	switch s.Kind {
	case ExitedWithCode:
		return fmt.Sprintf("\n\nExited with exit code %d", s.Code)
	case ExitedWithoutCode:
		return "\n\nProcess exited without exit code"
	default:
		return fmt.Sprintf("\n\nProcess failed: %s", s.Reason)
	}
}

type EventKind int

const (
	EventOutput EventKind = iota
	EventExited
)

// Event is either a chunk of output or the terminal exit status of a process.
// Chunk is shared with the log and other watchers, and must not be modified.
type Event struct {
	Kind   EventKind
	Chunk  []byte
	Status ExitStatus
}
