package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".shellctl")
}

func getLogger(config *viper.Viper) *zap.Logger {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.DisableStacktrace = true
	if !config.GetBool("debug") {
		loggerConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		loggerConfig.DisableCaller = true
	}
	l, err := loggerConfig.Build()
	if err != nil {
		panic(err)
	}
	return l
}

func main() {
	config := viper.New()
	config.AddConfigPath(configDir())
	config.SetConfigType("yaml")
	config.SetConfigName("config")
	config.SetEnvPrefix("SHELLCTL")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		<-sigc
		cancel()
	}()
	rootCmd := &cobra.Command{
		Use:   "shellctl",
		Short: "Control a shellstream server.",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			config.BindPFlags(cmd.Flags())
			config.BindPFlags(cmd.PersistentFlags())
			if err := config.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					log.Fatal(err)
				}
			}
		},
	}
	for _, cmd := range Processes(ctx, config) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Increase log verbosity.")
	rootCmd.PersistentFlags().String("host", "http://127.0.0.1:3000", "shellstream server URL")
	rootCmd.PersistentFlags().BoolP("use-consul", "c", false, "Use Hashicorp Consul to find shellstream server.")
	rootCmd.PersistentFlags().String("consul-service-name", "shellstream", "Consul service name.")
	rootCmd.PersistentFlags().String("consul-service-tag", "http", "Consul service tag.")
	rootCmd.Execute()
}
