// Command banyanfs drives one local encrypted drive end to end: creating
// it, reading and writing files through its private filesystem, and
// reconciling it against a Banyan storage server.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "banyanfs",
		Usage: "manage a local encrypted drive and sync it with a Banyan storage server",
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "create a new drive directory",
				ArgsUsage: "<drive-dir>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "origin", Usage: "host filesystem path this drive mirrors"},
				},
				Action: InitDrive,
			},
			{
				Name:      "write",
				Usage:     "write a local file into the drive at a path",
				ArgsUsage: "<drive-dir> <path> <local-file>",
				Action:    WriteFile,
			},
			{
				Name:      "cat",
				Usage:     "print a file's decrypted contents",
				ArgsUsage: "<drive-dir> <path>",
				Action:    Cat,
			},
			{
				Name:      "ls",
				Usage:     "list a directory's children",
				ArgsUsage: "<drive-dir> [path]",
				Action:    Ls,
			},
			{
				Name:      "status",
				Usage:     "classify a drive's sync state against a remote",
				ArgsUsage: "<drive-dir>",
				Flags:     []cli.Flag{serverFlag},
				Action:    Status,
			},
			{
				Name:      "sync",
				Usage:     "reconcile a drive's sync state against a remote",
				ArgsUsage: "<drive-dir>",
				Flags:     []cli.Flag{serverFlag},
				Action:    Sync,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "banyanfs:", err)
		os.Exit(1)
	}
}
