package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/shellstream/shell"
	"github.com/vx-labs/shellstream/stream"
	"go.uber.org/zap"
)

const processTemplate = `{{ range . -}}
• {{ .ID | shorten | yellow }}
  Command: {{ .Command }}
  Submitted: {{ .SubmittedAt | humanTime }}
  Duration: {{ duration .SubmittedAt .FinishedAt }}
  Output: {{ .OutputBytes | humanBytes }}
  Status: {{ if .Running }}{{ "running" | green }}{{ else }}{{ .Status }}{{ end }}
{{ end }}`

func renderProcesses(out io.Writer, processes []shell.Info) {
	table := getTable([]string{"ID", "Command", "Status", "Output", "Submitted", "Duration"}, out)
	for _, process := range processes {
		status := "running"
		if process.Status != nil {
			status = process.Status.String()
		}
		table.Append([]string{
			process.ID,
			process.Command,
			status,
			humanize.Bytes(process.OutputBytes),
			humanize.Time(process.SubmittedAt),
			humanDuration(process.SubmittedAt, process.FinishedAt),
		})
	}
	table.Render()
}

// exitCode maps a remote process status to the exit code of shellctl.
func exitCode(info shell.Info) int {
	if info.Status == nil || info.Status.Success() {
		return 0
	}
	if info.Status.Kind == stream.ExitedWithCode {
		return info.Status.Code
	}
	return 1
}

func Processes(ctx context.Context, config *viper.Viper) []*cobra.Command {
	run := &cobra.Command{
		Use:   "run <command>",
		Short: "Run a command on the server and follow its output.",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			l := getLogger(config)
			c := mustClient(config, l)
			info, err := c.Submit(ctx, strings.Join(args, " "))
			if err != nil {
				l.Fatal("failed to submit command", zap.Error(err))
			}
			l.Debug("command submitted", zap.String("process_id", info.ID))
			if config.GetBool("detach") {
				fmt.Fprintln(cmd.OutOrStdout(), info.ID)
				return
			}
			err = c.Follow(ctx, info.ID, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				l.Fatal("failed to follow process output", zap.Error(err))
			}
			info, err = c.Get(ctx, info.ID)
			if err != nil {
				l.Fatal("failed to get process status", zap.Error(err))
			}
			os.Exit(exitCode(info))
		},
	}
	run.Flags().Bool("detach", false, "Print the process ID and return without following its output.")

	ps := &cobra.Command{
		Use:     "ps",
		Aliases: []string{"ls"},
		Short:   "List processes known by the server.",
		Run: func(cmd *cobra.Command, _ []string) {
			l := getLogger(config)
			processes, err := mustClient(config, l).List(ctx)
			if err != nil {
				l.Fatal("failed to list processes", zap.Error(err))
			}
			format := config.GetString("format")
			if format == "" {
				renderProcesses(cmd.OutOrStdout(), processes)
				return
			}
			tpl, err := ParseTemplate(format)
			if err != nil {
				l.Fatal("invalid format", zap.Error(err))
			}
			if err := tpl.Execute(cmd.OutOrStdout(), processes); err != nil {
				l.Fatal("failed to render processes", zap.Error(err))
			}
		},
	}
	ps.Flags().String("format", "", fmt.Sprintf("Format processes using Golang template format, for example:\n%s", processTemplate))

	logs := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print a process output.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			l := getLogger(config)
			c := mustClient(config, l)
			var err error
			if config.GetBool("follow") {
				err = c.Follow(ctx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
			} else {
				err = c.Output(ctx, args[0], cmd.OutOrStdout())
			}
			if err != nil {
				l.Fatal("failed to read process output", zap.Error(err))
			}
		},
	}
	logs.Flags().BoolP("follow", "f", true, "Follow the output until the process terminates.")

	kill := &cobra.Command{
		Use:   "kill <id>...",
		Short: "Kill running processes.",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			l := getLogger(config)
			c := mustClient(config, l)
			for _, id := range args {
				if err := c.Kill(ctx, id); err != nil {
					l.Fatal("failed to kill process", zap.String("process_id", id), zap.Error(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Forget finished processes and release their output.",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			l := getLogger(config)
			c := mustClient(config, l)
			for _, id := range args {
				if err := c.Remove(ctx, id); err != nil {
					l.Fatal("failed to remove process", zap.String("process_id", id), zap.Error(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		},
	}
	return []*cobra.Command{run, ps, logs, kill, rm}
}
