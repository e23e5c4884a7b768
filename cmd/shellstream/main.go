package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/shellstream/commitlog"
	"github.com/vx-labs/shellstream/shell"
	"github.com/vx-labs/shellstream/shell/stats"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	config := viper.New()
	config.SetEnvPrefix("SHELLSTREAM")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
	cmd := cobra.Command{
		Use:   "shellstream",
		Short: "Run shell commands and stream their output over HTTP.",
		PreRun: func(cmd *cobra.Command, _ []string) {
			config.BindPFlags(cmd.Flags())
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx, cancel := context.WithCancel(context.Background())
			ctx = shell.StoreLogger(ctx, getLogger(config))
			ctx = shell.AddFields(ctx, zap.String("listen_address", config.GetString("listen")))
			if config.GetBool("pprof") {
				address := fmt.Sprintf("%s:%d", config.GetString("pprof-address"), config.GetInt("pprof-port"))
				go func() {
					mux := http.NewServeMux()
					mux.HandleFunc("/debug/pprof/", pprof.Index)
					mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
					mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
					mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
					mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
					panic(http.ListenAndServe(address, mux))
				}()
				shell.L(ctx).Info("started pprof", zap.String("pprof_url", fmt.Sprintf("http://%s/", address)))
			}
			if port := config.GetInt("metrics-port"); port > 0 {
				go func() {
					err := stats.ListenAndServe(port)
					if err != nil {
						shell.L(ctx).Error("metrics listener crashed", zap.Error(err))
					}
				}()
			}

			observers := []shell.Observer{shell.LogObserver(shell.L(ctx)), shell.StatsObserver()}
			var notifier *shell.MQTTNotifier
			if broker := config.GetString("mqtt-broker"); broker != "" {
				var err error
				notifier, err = shell.NewMQTTNotifier(broker,
					config.GetString("mqtt-username"), config.GetString("mqtt-password"),
					config.GetString("mqtt-topic"), shell.L(ctx))
				if err != nil {
					shell.L(ctx).Fatal("failed to connect to mqtt broker", zap.Error(err))
				}
				observers = append(observers, notifier)
			}
			table := shell.NewTable(ctx, observers,
				shell.WithShell(config.GetStringSlice("shell")...),
				shell.WithBlockSize(config.GetInt("block-size")),
				shell.WithReadBufferSize(config.GetInt("read-buffer-size")),
			)

			healthServer := health.NewServer()
			healthServer.SetServingStatus(shell.HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
			mux := http.NewServeMux()
			shell.NewServer(table, healthServer, shell.L(ctx)).Serve(mux)
			listener, err := net.Listen("tcp", config.GetString("listen"))
			if err != nil {
				shell.L(ctx).Fatal("listener failed to start", zap.Error(err))
			}
			httpServer := &http.Server{Handler: mux}
			go func() {
				err := httpServer.Serve(listener)
				if err != nil && err != http.ErrServerClosed {
					shell.L(ctx).Fatal("http listener crashed", zap.Error(err))
				}
			}()
			healthServer.SetServingStatus(shell.HealthService, healthpb.HealthCheckResponse_SERVING)
			shell.L(ctx).Info("shellstream started", zap.String("http_url", fmt.Sprintf("http://%s/", listener.Addr())))

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc,
				syscall.SIGINT,
				syscall.SIGTERM,
				syscall.SIGQUIT)
			<-sigc
			shell.L(ctx).Info("shellstream shutdown initiated")
			healthServer.Shutdown()
			shell.L(ctx).Debug("health server stopped")
			table.Close()
			shell.L(ctx).Debug("process table closed")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = httpServer.Shutdown(shutdownCtx)
			shutdownCancel()
			if err != nil {
				shell.L(ctx).Error("failed to shutdown http server", zap.Error(err))
			} else {
				shell.L(ctx).Debug("http server stopped")
			}
			if notifier != nil {
				notifier.Close()
				shell.L(ctx).Debug("mqtt notifier stopped")
			}
			cancel()
			shell.L(ctx).Info("shellstream successfully stopped")
		},
	}
	cmd.Flags().String("listen", "127.0.0.1:3000", "Listen for HTTP requests on this address.")
	cmd.Flags().Int("block-size", commitlog.DefaultBlockSize, "Size of the memory blocks storing process outputs.")
	cmd.Flags().Int("read-buffer-size", shell.DefaultReadBufferSize, "Size of the buffer used to read process outputs.")
	cmd.Flags().StringSlice("shell", nil, "Interpreter used to run commands, the command being appended as its last argument (default: \"sh,-c\", or \"cmd.exe,/c\" on Windows).")
	cmd.Flags().Bool("pprof", false, "Start pprof endpoint.")
	cmd.Flags().Int("pprof-port", 8080, "Profiling (pprof) port.")
	cmd.Flags().String("pprof-address", "127.0.0.1", "Profiling (pprof) address.")
	cmd.Flags().Bool("debug", false, "Use a fancy logger and increase logging level.")
	cmd.Flags().Int("metrics-port", 0, "Start Prometheus HTTP metrics server on this port.")
	cmd.Flags().String("mqtt-broker", "", "Publish process exit records to this MQTT broker (tcp:// or tls://).")
	cmd.Flags().String("mqtt-username", "", "MQTT broker username.")
	cmd.Flags().String("mqtt-password", "", "MQTT broker password.")
	cmd.Flags().String("mqtt-topic", "shellstream/exits", "MQTT topic prefix for process exit records.")
	cmd.Execute()
}
