package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"verso/internal/config"
	"verso/internal/engine"
)

func newCleanupCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	var scopeID string
	var all bool
	var dryRun bool
	var includePriority bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run a reclaim pass: depth trimming, priority eviction, orphan sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && scopeID != "" {
				return fmt.Errorf("--scope and --all are mutually exclusive")
			}

			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			opts := engine.ReclaimOptions{DryRun: dryRun, IncludeHighPriority: includePriority}

			var reports []engine.ReclaimReport
			if all {
				if reports, err = app.reclaim.GlobalCleanup(cmd.Context(), opts); err != nil {
					return err
				}
			} else {
				report, err := app.reclaim.Reclaim(cmd.Context(), scopeID, opts)
				if err != nil {
					return err
				}
				reports = []engine.ReclaimReport{report}
			}

			return writeResult(*outputFormat, reports, func() error {
				for _, report := range reports {
					if err := writePlain("%s\n", formatReclaimReport(report)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scopeID, "scope", "", "quota scope to clean (default scope when empty)")
	cmd.Flags().BoolVar(&all, "all", false, "clean every configured scope")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be reclaimed without deleting")
	cmd.Flags().BoolVar(&includePriority, "include-priority", false, "allow eviction of priority-protected versions")

	return cmd
}

func formatReclaimReport(report engine.ReclaimReport) string {
	scope := report.ScopeID
	if scope == "" {
		scope = "(default)"
	}
	prefix := ""
	if report.DryRun {
		prefix = "[dry-run] "
	}
	return fmt.Sprintf("%sscope %s: trimmed %d, evicted %d, swept %d blobs, freed %s",
		prefix, scope,
		report.DepthEnforcement.DeletedVersions,
		report.PriorityCleanup.DeletedVersions,
		report.BlobCleanup.DeletedBlobs,
		formatBytes(report.TotalFreedBytes))
}
