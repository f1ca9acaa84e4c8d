package main

import (
	"github.com/spf13/cobra"

	"verso/internal/config"
)

func newVersionsCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions <file-id>",
		Short: "List a file's versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			versions, err := app.versions.ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return writeResult(*outputFormat, versions, func() error {
				if len(versions) == 0 {
					return writePlain("no versions for %s\n", args[0])
				}
				for _, version := range versions {
					if err := writePlain("%s\n", formatVersionLine(version)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	return cmd
}
