package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"verso/internal/config"
)

func newCatCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "cat <version-id>",
		Short: "Print a version's original content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			_, content, err := app.versions.GetVersionContent(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, content, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				return nil
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write content to a file instead of stdout")

	return cmd
}
