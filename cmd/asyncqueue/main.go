package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/internal/config"
	"github.com/kubev2v/asyncqueue/internal/log"
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "asyncqueue",
		Short: "Keyed, deduplicating task queue",
		Long:  "asyncqueue runs keyed tasks at most once per key with bounded parallelism and serves them over HTTP.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.BindFlags(v, cmd.Flags())
		},
		SilenceUsage: true,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRunCmd(v), newDemoCmd(v), newSubmitCmd(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the global logger.
func loadConfig(v *viper.Viper) (*config.Configuration, func(), error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	logger, err := log.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}, nil
}
