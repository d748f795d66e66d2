package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wrenvoice/wren/pkg/audio/portaudio"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := portaudio.ListDevices()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tHOST API\tINPUTS\tSAMPLE RATE\t")
			for _, d := range devices {
				if d.MaxInputChannels == 0 {
					continue
				}
				name := d.Name
				if d.DefaultInput {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%.0f Hz\t\n", name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
			}
			return w.Flush()
		},
	}
}
