package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"verso/internal/config"
	"verso/internal/engine"
)

func newStatusCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	var scopeID string
	var all bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show quota health for a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			var statuses []engine.ScopeStatus
			if all {
				if statuses, err = app.monitor.AllStatuses(cmd.Context()); err != nil {
					return err
				}
			} else {
				status, err := app.monitor.Status(cmd.Context(), scopeID)
				if err != nil {
					return err
				}
				statuses = []engine.ScopeStatus{status}
			}

			return writeResult(*outputFormat, statuses, func() error {
				for _, status := range statuses {
					if err := writePlain("%s\n", formatScopeStatus(status)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scopeID, "scope", "", "quota scope (default scope when empty)")
	cmd.Flags().BoolVar(&all, "all", false, "show every configured scope")

	return cmd
}

func formatScopeStatus(status engine.ScopeStatus) string {
	scope := status.Scope.ScopeID
	if scope == "" {
		scope = "(default)"
	}
	return fmt.Sprintf("%s: %s, %s / %s (%.1f%%), depth %d",
		scope, status.Status,
		formatBytes(status.Scope.CurrentUsageBytes),
		formatBytes(status.Scope.MaxSizeBytes),
		status.UsagePercent,
		status.Scope.MaxDepth)
}
