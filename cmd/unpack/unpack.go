// Package unpack implements `hakodl unpack`: reverse an epub container
// back into the canonical on-disk form.
package unpack

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/cobaltgrove/hakodl/internal/epubunpkg"
)

// Cmd builds the `unpack` subcommand.
func Cmd() *cli.Command {
	return &cli.Command{
		Name:      "unpack",
		Usage:     "reconstruct the canonical on-disk form from an epub container",
		ArgsUsage: "<epub-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Value: ".", Usage: "output directory"},
			&cli.BoolFlag{Name: "clean-volume-names", Usage: "strip a merged-source naming convention from volume titles"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			epubFile := cmd.Args().First()
			if epubFile == "" {
				return fmt.Errorf("unpack requires an epub file argument")
			}

			opts := epubunpkg.Options{OutputDir: cmd.String("output")}
			if cmd.Bool("clean-volume-names") {
				opts.CleanVolumeName = stripMergedSourceSuffix
			}

			baseDir, err := epubunpkg.Unpack(epubFile, opts)
			if err != nil {
				return fmt.Errorf("unpacking %s: %w", epubFile, err)
			}
			log.Infof("wrote %s", baseDir)
			return nil
		},
	}
}

// stripMergedSourceSuffix drops a trailing " - <rest>" a merged EPUB's
// per-volume nav titles sometimes carry (e.g. "Volume 1 - My Novel" ->
// "Volume 1"), matching the cleaning the Python original offered
// interactively.
func stripMergedSourceSuffix(name string) string {
	if i := strings.Index(name, " - "); i > 0 {
		return strings.TrimSpace(name[:i])
	}
	return name
}
