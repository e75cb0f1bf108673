package devices

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wakefire/wakefire/internal/audio"
	"github.com/wakefire/wakefire/internal/conf"
	"github.com/wakefire/wakefire/internal/logger"
)

// Command creates a new cobra.Command listing capture devices.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  "List the capture devices the audio backend reports and whether each would be opened as a source.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := audio.NewBackend(logger.Global().Module("audio"))
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			return printDevices(cmd.OutOrStdout(), backend, audio.NewDeviceFilter(settings.Audio.Exclude...))
		},
	}

	return cmd
}

func printDevices(out io.Writer, lister audio.DeviceLister, filter *audio.DeviceFilter) error {
	names, err := lister.ListDevices()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tDEVICE\tSOURCE")

	seen := make(map[string]bool, len(names))
	for i, name := range names {
		status := "yes"
		switch {
		case filter.Excluded(name):
			status = "filtered"
		case seen[name]:
			status = "duplicate"
		}
		seen[name] = true
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, name, status)
	}
	return tw.Flush()
}
