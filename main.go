// hakodl is the CLI entrypoint (spec SPEC_FULL.md §2 component I): a thin
// urfave/cli/v3 command tree over the Catalog Parser, Chapter Downloader,
// Packager and Unpackager, mirroring the teacher's root main.go shape
// (one cli.Command with a Version string and a Commands slice of
// sub-package Cmd() constructors).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/cobaltgrove/hakodl/cmd/fetch"
	"github.com/cobaltgrove/hakodl/cmd/pack"
	"github.com/cobaltgrove/hakodl/cmd/unpack"
	"github.com/cobaltgrove/hakodl/cmd/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "hakodl",
		Usage:   "fetch, pack, and unpack Hako-family light novels",
		Version: version.Version,
		Before: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Bool("verbose") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			fetch.Cmd(),
			pack.Cmd(),
			unpack.Cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
