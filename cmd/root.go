package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/ftbuffer/cmd/client"
	configcmd "github.com/tphakala/ftbuffer/cmd/config"
	"github.com/tphakala/ftbuffer/cmd/serve"
	"github.com/tphakala/ftbuffer/internal/buildinfo"
	"github.com/tphakala/ftbuffer/internal/conf"
	"github.com/tphakala/ftbuffer/internal/errors"
	"github.com/tphakala/ftbuffer/internal/logger"
)

func init() {
	errors.RegisterComponent("ftbuffer/cmd", "cli")
}

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ftbuffer",
		Short:         "FieldTrip buffer server and client tools",
		Version:       build.Version(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	configCmd := configcmd.Command(settings)
	subcommands := []*cobra.Command{
		serve.Command(settings, build),
		client.HeaderCommand(settings),
		client.PollCommand(settings),
		client.WaitCommand(settings),
		client.FlushCommand(settings),
		configCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// config prints settings to stdout and must not log to it
		if cmd == configCmd || cmd.Parent() == configCmd {
			return nil
		}
		return initialize(settings)
	}

	return rootCmd
}

// initialize configures the central logger once flags are parsed.
func initialize(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}

	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
