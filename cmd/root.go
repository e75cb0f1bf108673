package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wakefire/wakefire/cmd/config"
	"github.com/wakefire/wakefire/cmd/devices"
	"github.com/wakefire/wakefire/cmd/keywords"
	"github.com/wakefire/wakefire/cmd/run"
	"github.com/wakefire/wakefire/cmd/version"
	"github.com/wakefire/wakefire/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	v := viper.New()
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "wakefire",
		Short:        "Wake phrase triggered actuator",
		Long:         "wakefire listens on every attached microphone for a wake phrase and pulses a GPIO output when one is heard.",
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, v, &configFile); err != nil {
		panic(err)
	}

	runCmd := run.Command(settings, v)
	devicesCmd := devices.Command(settings)
	configCmd := config.Command(settings)
	keywordsCmd := keywords.Command()
	versionCmd := version.Command()

	rootCmd.AddCommand(runCmd, devicesCmd, configCmd, keywordsCmd, versionCmd)

	// Commands that do not read the config file
	noConfig := []*cobra.Command{keywordsCmd, versionCmd}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if slices.Contains(noConfig, cmd) {
			return nil
		}

		loaded, err := conf.Load(v, conf.LoadOptions{
			ConfigFile:     configFile,
			WriteDefault:   cmd == runCmd,
			SkipValidation: cmd != runCmd,
		})
		if err != nil {
			return err
		}
		*settings = *loaded
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config file (default: search ~/.config/wakefire and /etc/wakefire)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
