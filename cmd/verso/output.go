package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"verso/internal/format"
	"verso/internal/models"
)

// writeResult renders payload with the requested formatter, or via plainFn
// for the default human-readable output.
func writeResult(formatName string, payload any, plainFn func() error) error {
	if formatName == "" || formatName == "plain" {
		return plainFn()
	}
	formatter, err := format.ByName(formatName)
	if err != nil {
		return err
	}
	return formatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func formatVersionLine(v models.Version) string {
	marker := " "
	if v.IsPriority {
		marker = "*"
	}
	return fmt.Sprintf("%s v%-4d %s  %s  %s  %s  %s",
		marker, v.VersionNumber, v.ID,
		humanize.Bytes(uint64(v.RawSizeBytes)),
		v.StorageKind, v.ChangeKind,
		formatTime(v.CreatedAt))
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
