package keywords

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wakefire/wakefire/internal/wakeword"
)

// Command creates a new cobra.Command listing the built-in keywords.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the built-in wake phrases",
		Long:  "List the keywords usable in wakeword.keywords without a custom keyword file.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range wakeword.BuiltInKeywords {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	return cmd
}
