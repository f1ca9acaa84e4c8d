package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"verso/internal/config"
	"verso/internal/engine"
	"verso/internal/models"
)

func newScopeCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Inspect and configure quota scopes",
	}

	cmd.AddCommand(
		newScopeShowCmd(cfg, outputFormat),
		newScopeListCmd(cfg, outputFormat),
		newScopeSetCmd(cfg, outputFormat),
	)
	return cmd
}

func newScopeShowCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [scope-id]",
		Short: "Show one scope's quota configuration and usage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scopeID := models.DefaultScopeID
			if len(args) == 1 {
				scopeID = args[0]
			}

			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			scope, err := app.quotas.GetScope(cmd.Context(), scopeID)
			if err != nil {
				return err
			}
			return writeResult(*outputFormat, scope, func() error {
				return writePlain("%s\n", formatScopeLine(scope))
			})
		},
	}
}

func newScopeListCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured scopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			scopes, err := app.quotas.ListScopes(cmd.Context())
			if err != nil {
				return err
			}
			return writeResult(*outputFormat, scopes, func() error {
				for _, scope := range scopes {
					if err := writePlain("%s\n", formatScopeLine(scope)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newScopeSetCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	var maxSize int64
	var headroom int64
	var maxDepth int64
	var enabled bool

	cmd := &cobra.Command{
		Use:   "set [scope-id]",
		Short: "Update a scope's quota configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scopeID := models.DefaultScopeID
			if len(args) == 1 {
				scopeID = args[0]
			}

			update := engine.ScopeConfigUpdate{}
			if cmd.Flags().Changed("max-size") {
				update.MaxSizeBytes = &maxSize
			}
			if cmd.Flags().Changed("headroom") {
				update.HeadroomBytes = &headroom
			}
			if cmd.Flags().Changed("max-depth") {
				update.MaxDepth = &maxDepth
			}
			if cmd.Flags().Changed("enabled") {
				update.Enabled = &enabled
			}

			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			scope, err := app.quotas.UpdateScopeConfig(cmd.Context(), scopeID, update)
			if err != nil {
				return err
			}
			return writeResult(*outputFormat, scope, func() error {
				return writePlain("%s\n", formatScopeLine(scope))
			})
		},
	}

	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "maximum scope size in bytes")
	cmd.Flags().Int64Var(&headroom, "headroom", 0, "cleanup trigger headroom in bytes")
	cmd.Flags().Int64Var(&maxDepth, "max-depth", 0, "maximum retained versions per file")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "enable quota enforcement")

	return cmd
}

func formatScopeLine(scope models.QuotaScope) string {
	id := scope.ScopeID
	if scope.IsDefault() {
		id = "(default)"
	}
	state := "enabled"
	if !scope.Enabled {
		state = "disabled"
	}
	return fmt.Sprintf("%s: %s / %s, headroom %s, depth %d, %s",
		id,
		formatBytes(scope.CurrentUsageBytes),
		formatBytes(scope.MaxSizeBytes),
		formatBytes(scope.HeadroomBytes),
		scope.MaxDepth,
		state)
}
