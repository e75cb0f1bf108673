package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wakefire/wakefire/internal/buildinfo"
)

// Command creates a new cobra.Command printing build information.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of wakefire",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			build := buildinfo.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "wakefire %s (built %s)\n", build.GetVersion(), build.GetBuildDate())
		},
	}
}
