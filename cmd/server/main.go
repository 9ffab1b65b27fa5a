package main

import (
	"fmt"
	"os"

	"github.com/blues/pledge/internal/config"
	"github.com/blues/pledge/internal/logger"
	"github.com/spf13/cobra"
)

const programName = "pledge"

var (
	configFile string
	debug      bool
	cfg        *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Milestone based crowdfunding escrow service",
		RunE:  serveRun,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "D", false, "enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if debug {
			loaded.Log.Level = "debug"
		}
		if err := logger.Init(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(sweepCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
