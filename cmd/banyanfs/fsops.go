package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/banyancomputer/banyanfs/fs"
)

// WriteFile seals localPath's contents into the drive at the given
// in-filesystem path, replacing whatever was there before.
func WriteFile(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return fmt.Errorf("usage: banyanfs write <drive-dir> <path> <local-file>")
	}
	dir, fsPath, localPath := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	filesystem, d, err := openFilesystem(c.Context, dir)
	if err != nil {
		return err
	}
	defer d.Close(c.Context)

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %q: %w", localPath, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(localPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if err := filesystem.Write(c.Context, fs.ParsePath(fsPath), data, mimeType); err != nil {
		return fmt.Errorf("write %q: %w", fsPath, err)
	}

	if err := saveAndFinalize(c.Context, filesystem, d); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%s)\n", fsPath, humanize.Bytes(uint64(len(data))))
	return nil
}

// Cat prints the decrypted contents of a file in the drive to stdout.
func Cat(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: banyanfs cat <drive-dir> <path>")
	}
	dir, fsPath := c.Args().Get(0), c.Args().Get(1)

	filesystem, d, err := openFilesystem(c.Context, dir)
	if err != nil {
		return err
	}
	defer d.Close(c.Context)

	data, err := filesystem.Read(c.Context, fs.ParsePath(fsPath))
	if err != nil {
		return fmt.Errorf("read %q: %w", fsPath, err)
	}
	_, err = c.App.Writer.Write(data)
	return err
}

// Ls lists the children of a directory in the drive.
func Ls(c *cli.Context) error {
	dir := "."
	fsPath := ""
	switch c.Args().Len() {
	case 0:
		return fmt.Errorf("usage: banyanfs ls <drive-dir> [path]")
	case 1:
		dir = c.Args().Get(0)
	default:
		dir = c.Args().Get(0)
		fsPath = c.Args().Get(1)
	}

	filesystem, d, err := openFilesystem(c.Context, dir)
	if err != nil {
		return err
	}
	defer d.Close(c.Context)

	entries, err := filesystem.Ls(c.Context, fs.ParsePath(fsPath))
	if err != nil {
		return fmt.Errorf("ls %q: %w", fsPath, err)
	}
	for _, e := range entries {
		kind := "dir"
		if e.IsFile {
			kind = "file"
		}
		fmt.Fprintf(c.App.Writer, "%-5s %s\n", kind, e.Name)
	}
	return nil
}
