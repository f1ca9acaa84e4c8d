package main

import (
	"github.com/spf13/cobra"

	"verso/internal/config"
)

func newDeleteCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <version-id> [<version-id>...]",
		Short: "Delete versions and release their blob references",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			type result struct {
				ID         string `json:"id"`
				FreedBytes int64  `json:"freed_bytes"`
			}
			results := make([]result, 0, len(args))
			for _, id := range args {
				freed, err := app.versions.DeleteVersion(cmd.Context(), id)
				if err != nil {
					return err
				}
				results = append(results, result{ID: id, FreedBytes: freed})
			}

			return writeResult(*outputFormat, results, func() error {
				for _, r := range results {
					if err := writePlain("deleted %s (freed %s)\n", r.ID, formatBytes(r.FreedBytes)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	return cmd
}
