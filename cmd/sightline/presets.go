package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/eleven-am/sightline/internal/obstacle"
	"github.com/spf13/cobra"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the obstacle detection presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "PRESET\tDEPTH\tNEAR RATIO\tMIN OBJECT\tCONFIRM\tCOMBINE")
			for _, name := range obstacle.Presets {
				cfg, err := obstacle.Preset(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d/%d\t%s\n",
					name,
					cfg.DepthThreshold,
					cfg.NearPixelRatio,
					cfg.MinObjectSize,
					cfg.MinConfirmations,
					cfg.HistorySize,
					cfg.Combine)
			}
			return w.Flush()
		},
	}
}
