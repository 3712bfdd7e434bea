// Package pack implements `hakodl pack`: run the Packager over a
// canonical on-disk base directory, producing a merged container by
// default or one volume's container with --volume.
//
// Grounded on the teacher's make_epub/make_epub.go command shape.
package pack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/cobaltgrove/hakodl/internal/epubpkg"
	"github.com/cobaltgrove/hakodl/internal/imaging"
)

// Cmd builds the `pack` subcommand.
func Cmd() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "assemble a canonical on-disk novel directory into an epub container",
		ArgsUsage: "<base-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Value: ".", Usage: "output directory for the epub"},
			&cli.BoolFlag{Name: "compress", Usage: "transcode embedded images to compressed JPEG"},
			&cli.StringFlag{Name: "volume", Usage: "volume record filename to build alone (default: build the merged container)"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			baseDir := cmd.Args().First()
			if baseDir == "" {
				return fmt.Errorf("pack requires a base directory argument")
			}

			cfg := epubpkg.Config{CompressImages: cmd.Bool("compress"), OutputDir: cmd.String("output")}

			var transcoder imaging.Transcoder = imaging.NewPassthroughTranscoder()
			if cfg.CompressImages {
				transcoder = imaging.NewStdTranscoder()
			}

			packager := epubpkg.New(baseDir, cfg, transcoder)

			if volume := cmd.String("volume"); volume != "" {
				out, err := packager.BuildVolume(volume)
				if err != nil {
					return fmt.Errorf("building volume: %w", err)
				}
				log.Infof("wrote %s", out)
				return nil
			}

			filenames, err := volumeRecordFilenames(baseDir)
			if err != nil {
				return err
			}
			out, err := packager.BuildMerged(filenames)
			if err != nil {
				return fmt.Errorf("building merged container: %w", err)
			}
			log.Infof("wrote %s", out)
			return nil
		},
	}
}

// volumeRecordFilenames lists every *.json file in baseDir except
// metadata.json, which is what BuildMerged expects for
// volumeRecordFilenames.
func volumeRecordFilenames(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", baseDir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "metadata.json" || filepath.Ext(name) != ".json" {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}
