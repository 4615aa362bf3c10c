// Package cmd assembles the labpredict command line
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orchidlab/labpredict/cmd/predict"
	"github.com/orchidlab/labpredict/cmd/refresh"
	"github.com/orchidlab/labpredict/cmd/remind"
	"github.com/orchidlab/labpredict/cmd/schedule"
	"github.com/orchidlab/labpredict/cmd/serve"
	"github.com/orchidlab/labpredict/internal/app"
	"github.com/orchidlab/labpredict/internal/buildinfo"
	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/logger"
)

// RootCommand creates the root command. settings is filled in before any
// subcommand runs, so subcommands may hold on to the pointer.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		configFile string
		central    *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:           "labpredict",
		Short:         "Germination and maturation estimates with follow-up reminders",
		Version:       build.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(
		predict.Command(settings),
		refresh.Command(settings, build),
		remind.Command(settings, build),
		schedule.Command(settings, build),
		serve.Command(settings, build),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// flags of the running command take precedence over file and environment
		if err := conf.BindFlags(cmd.Flags()); err != nil {
			return err
		}
		loaded, err := conf.Load(configFile)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		*settings = *loaded

		if central, err = app.InitLogging(settings); err != nil {
			return fmt.Errorf("error initializing logging: %w", err)
		}
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return central.Close()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to the configuration file (default: labpredict.yaml in ., ~/.config/labpredict, /etc/labpredict)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	return conf.BindFlagKey(rootCmd.PersistentFlags(), "debug", "debug")
}
