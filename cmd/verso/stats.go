package main

import (
	"github.com/spf13/cobra"

	"verso/internal/config"
	"verso/internal/models"
)

func newStatsCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	var recompute bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show global storage counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			var stats models.GlobalStats
			if recompute {
				stats, err = app.stats.Recompute(cmd.Context())
			} else {
				stats, err = app.stats.Stats(cmd.Context())
			}
			if err != nil {
				return err
			}

			return writeResult(*outputFormat, stats, func() error {
				if err := writePlain("versions: %d\n", stats.TotalVersions); err != nil {
					return err
				}
				if err := writePlain("raw: %s\n", formatBytes(stats.TotalRawBytes)); err != nil {
					return err
				}
				if err := writePlain("stored: %s\n", formatBytes(stats.TotalCompressedBytes)); err != nil {
					return err
				}
				if !stats.LastPriorityRunAt.IsZero() {
					return writePlain("last cleanup: %s\n", formatTime(stats.LastPriorityRunAt))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&recompute, "recompute", false, "re-derive counters from the catalog before printing")

	return cmd
}
