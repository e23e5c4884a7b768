//go:build windows

package shell

import (
	"context"
	"os/exec"
)

var defaultShell = []string{"cmd.exe", "/c"}

func shellCommand(ctx context.Context, shell []string, command string) *exec.Cmd {
	args := append(append([]string{}, shell[1:]...), command)
	return exec.CommandContext(ctx, shell[0], args...)
}
