package run

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wakefire/wakefire/internal/app"
	"github.com/wakefire/wakefire/internal/conf"
)

// Command creates the command that runs the trigger coordinator.
func Command(settings *conf.Settings, v *viper.Viper) *cobra.Command {
	var opts app.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen for the wake phrase and drive the actuator",
		Long: "Open every capture device, listen for the configured wake phrases and pulse the fire " +
			"output on detection or when the fire button is pressed. Stops on SIGINT, SIGTERM or the shutdown button.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, settings, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Use a simulated actuator instead of GPIO lines")

	// Set up flags specific to the 'run' command
	if err := setupFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags defines config overrides and binds them to their viper keys.
func setupFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	flags.String("debug-path", "", "Directory for captured debug audio, one WAV per device")
	flags.StringSlice("exclude", nil, "Additional capture device names to ignore")
	flags.Duration("min-refire-interval", 0, "Minimum time between two fires")
	flags.String("shutdown-command", "", "Command run after the shutdown button stops wakefire")
	flags.Bool("telemetry", false, "Enable the Prometheus metrics endpoint")
	flags.String("listen", "", "Listen address of the metrics endpoint")

	bindings := map[string]string{
		"debug-path":          "audio.debugpath",
		"exclude":             "audio.exclude",
		"min-refire-interval": "trigger.minrefireinterval",
		"shutdown-command":    "shutdown.command",
		"telemetry":           "telemetry.enabled",
		"listen":              "telemetry.listen",
	}
	for flag, key := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
