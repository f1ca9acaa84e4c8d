package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"verso/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var outputFormat string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "verso",
		Short: "Verso is a versioning and deduplication layer for file storage",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel); err != nil {
				return err
			} else if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "plain", "output format (plain, json, yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newPutCmd(cfg, &outputFormat),
		newCatCmd(cfg),
		newVersionsCmd(cfg, &outputFormat),
		newDeleteCmd(cfg, &outputFormat),
		newCleanupCmd(cfg, &outputFormat),
		newStatusCmd(cfg, &outputFormat),
		newStatsCmd(cfg, &outputFormat),
		newScopeCmd(cfg, &outputFormat),
		newConfigCmd(cfg),
	)

	return cmd
}
