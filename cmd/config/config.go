package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wakefire/wakefire/internal/conf"
)

// Command creates a new cobra.Command printing the effective settings.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, config file, environment and flags are applied, with credentials masked, followed by any validation findings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := settings.MarshalRedactedYAML()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if settings.ConfigFile != "" {
				fmt.Fprintf(out, "# %s\n", settings.ConfigFile)
			}
			fmt.Fprint(out, string(data))

			result := conf.ValidateSettings(settings)
			for _, w := range result.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			if !result.Valid {
				return fmt.Errorf("%s", result.Summary())
			}
			return nil
		},
	}

	return cmd
}
