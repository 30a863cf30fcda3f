package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/doctorauto/sophia/internal/config"
	"github.com/doctorauto/sophia/internal/logger"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	rootCmd := &cobra.Command{
		Use:           "sophia",
		Short:         "Multi-agent orchestrator for the workshop assistant agents",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}

	viper.SetEnvPrefix("SOPHIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", config.DefaultConfigFile, "path to the YAML configuration file")
	rootCmd.PersistentFlags().Bool("json", false, "print command output as JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(
		serve,
		newMigrateCmd(),
		newIngestCmd(),
		newAgentsCmd(),
	)
	return rootCmd
}

// bootstrap loads the configuration and installs the default logger.
// The returned func flushes the logger.
func bootstrap() (*config.Config, func(), error) {
	cfg, err := config.LoadFrom(viper.GetString("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, closer.Close, nil
}
