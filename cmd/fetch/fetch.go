// Package fetch implements `hakodl fetch`: parse a novel's landing page
// into a Catalog, then download every volume's chapters into the
// canonical on-disk form. The spec's interactive menu front-end is out of
// scope (spec §1 non-goal); this command substitutes a non-interactive
// "all volumes" flow plus a --volumes index-list flag, matching
// SPEC_FULL.md §6's CLI surface.
//
// Grounded on the teacher's cmd/book_dl/book_dl.go for the flags ->
// options struct -> Action closure shape.
package fetch

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/cobaltgrove/hakodl/cmd/cliutil"
	"github.com/cobaltgrove/hakodl/internal/catalog"
	"github.com/cobaltgrove/hakodl/internal/chapterdl"
	"github.com/cobaltgrove/hakodl/internal/hakohosts"
	"github.com/cobaltgrove/hakodl/internal/model"
	"github.com/cobaltgrove/hakodl/internal/network"
	"github.com/cobaltgrove/hakodl/internal/slugutil"
)

// Cmd builds the `fetch` subcommand.
func Cmd() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "fetch a novel's catalog and download its chapters",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "proxy", Aliases: []string{"p"}, Usage: "comma-separated proxy URLs"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
			&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
			&cli.StringFlag{Name: "volumes", Usage: "comma-separated 1-based volume indices to download (default: all)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rawURL := cmd.Args().First()
			if rawURL == "" {
				return fmt.Errorf("fetch requires a novel URL argument")
			}

			verbose := cmd.Bool("verbose")
			pool, err := cliutil.BuildProxyPool(cmd.String("proxy"), verbose)
			if err != nil {
				return err
			}

			cfg := network.DefaultConfig()
			cfg.PrimaryHosts = hakohosts.DefaultPrimaryHosts
			cfg.ImageHosts = hakohosts.DefaultImageHosts
			cfg.Headers = hakohosts.DefaultHeaders()
			cfg.Pool = pool
			fabric := network.New(cfg)

			cat, err := catalog.Parse(ctx, fabric, hakohosts.DefaultPrimaryHosts, rawURL)
			if err != nil {
				return fmt.Errorf("parsing catalog: %w", err)
			}
			log.Infof("fetched catalog for %q: %d volumes", cat.Name, len(cat.Volumes))

			baseDir := filepath.Join(cmd.String("out"), slugutil.Slug(cat.Name))
			dl := chapterdl.New(cat, baseDir, fabric)
			if err := dl.CreateMetadataFile(ctx); err != nil {
				return fmt.Errorf("creating metadata file: %w", err)
			}

			targets, err := selectVolumes(cat.Volumes, cmd.String("volumes"))
			if err != nil {
				return err
			}

			for _, vol := range targets {
				log.Infof("downloading volume %q", vol.Name)
				bar := progressbar.Default(int64(len(vol.Chapters)), vol.Name)
				err := dl.DownloadVolume(ctx, vol, func(done, total int) {
					bar.Set(done)
				})
				bar.Finish()
				if err != nil {
					log.Errorf("volume %q: %s", vol.Name, err)
				}
			}

			return nil
		},
	}
}

// selectVolumes filters volumes by a comma-separated list of 1-based
// indices in rawIndices; an empty rawIndices selects every volume.
func selectVolumes(volumes []model.Volume, rawIndices string) ([]model.Volume, error) {
	rawIndices = strings.TrimSpace(rawIndices)
	if rawIndices == "" {
		return volumes, nil
	}

	var out []model.Volume
	for _, part := range strings.Split(rawIndices, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(volumes) {
			return nil, fmt.Errorf("invalid volume index %q", part)
		}
		out = append(out, volumes[n-1])
	}
	return out, nil
}
