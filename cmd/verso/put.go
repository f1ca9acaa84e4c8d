package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"verso/internal/config"
	"verso/internal/engine"
	"verso/internal/models"
)

func newPutCmd(cfg *config.Config, outputFormat *string) *cobra.Command {
	var scopeID string
	var priority bool
	var changeKind string
	var force bool
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "put <file-id> [path]",
		Short: "Capture a new version of a file (reads stdin when no path is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readPutContent(args)
			if err != nil {
				return err
			}

			kind := models.ChangeKindUpdate
			if changeKind != "" {
				if kind, err = models.ParseChangeKind(changeKind); err != nil {
					return err
				}
			}

			app, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			req := engine.CreateVersionRequest{
				FileID:     args[0],
				ScopeID:    scopeID,
				Content:    content,
				IsPriority: priority,
				ChangeKind: kind,
				Force:      force,
			}

			decision, err := app.versions.ShouldCreateVersion(cmd.Context(), req)
			if err != nil {
				return err
			}
			if checkOnly || !decision.Create {
				return writeResult(*outputFormat, decision, func() error {
					if decision.Create {
						return writePlain("would create version\n")
					}
					return writePlain("skipped: %s\n", decision.Reason)
				})
			}

			version, err := app.versions.CreateVersion(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResult(*outputFormat, version, func() error {
				return writePlain("created %s v%d (%s, %s)\n",
					version.FileID, version.VersionNumber, version.ID, version.StorageKind)
			})
		},
	}

	cmd.Flags().StringVar(&scopeID, "scope", "", "owning quota scope")
	cmd.Flags().BoolVar(&priority, "priority", false, "protect this version from priority eviction")
	cmd.Flags().StringVar(&changeKind, "change-kind", "", "change kind (create, update, delete_marker)")
	cmd.Flags().BoolVar(&force, "force", false, "capture even when the scope is over quota")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "report the versioning decision without writing")

	return cmd
}

func readPutContent(args []string) ([]byte, error) {
	if len(args) < 2 || args[1] == "-" {
		return io.ReadAll(os.Stdin)
	}
	content, err := os.ReadFile(args[1])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[1], err)
	}
	return content, nil
}
