//go:build !windows

package shell

import (
	"context"
	"os/exec"
	"syscall"
)

var defaultShell = []string{"sh", "-c"}

// shellCommand runs command in its own process group, so that cancelling ctx
// also stops the children the shell spawned.
func shellCommand(ctx context.Context, shell []string, command string) *exec.Cmd {
	args := append(append([]string{}, shell[1:]...), command)
	cmd := exec.CommandContext(ctx, shell[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd
}
