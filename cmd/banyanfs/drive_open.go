package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/banyancomputer/banyanfs/drive"
	"github.com/banyancomputer/banyanfs/fs"

	"github.com/urfave/cli/v2"
)

const (
	metadataCarName = "metadata.car"
	contentCarName  = "content.car"
	registryDir     = "registry"
)

// openDrive opens the two CARv2 containers under dir, creating them if
// this is the first time dir has been used.
func openDrive(dir string) (*drive.Drive, error) {
	d, err := drive.Create(
		filepath.Join(dir, metadataCarName),
		filepath.Join(dir, contentCarName),
		drive.WithOriginPath(dir),
	)
	if err != nil {
		return nil, fmt.Errorf("open drive at %q: %w", dir, err)
	}
	return d, nil
}

// openRegistry opens this drive directory's pebble-backed registry.
func openRegistry(dir string) (*drive.Registry, error) {
	return drive.OpenRegistry(filepath.Join(dir, registryDir))
}

// openFilesystem opens the drive at dir and unlocks its private filesystem
// using the identity key persisted alongside it. The drive must already
// have a root (i.e. have been through init).
func openFilesystem(ctx context.Context, dir string) (*fs.Filesystem, *drive.Drive, error) {
	d, err := openDrive(dir)
	if err != nil {
		return nil, nil, err
	}

	salt, err := loadOrCreateSalt(dir)
	if err != nil {
		return nil, nil, err
	}
	identity, err := loadOrCreateIdentity(dir)
	if err != nil {
		return nil, nil, err
	}

	root := d.CurrentRoot()
	if !root.Defined() {
		return nil, nil, fmt.Errorf("drive at %q has no root yet — run `banyanfs init` first", dir)
	}

	filesystem, err := fs.Unlock(ctx, d, salt, root, identity)
	if err != nil {
		return nil, nil, fmt.Errorf("unlock drive at %q: %w", dir, err)
	}
	return filesystem, d, nil
}

// saveAndFinalize persists filesystem's current state as the drive's new
// root and writes both containers' CARv2 indexes.
func saveAndFinalize(ctx context.Context, filesystem *fs.Filesystem, d *drive.Drive) error {
	root, err := filesystem.Save(ctx)
	if err != nil {
		return fmt.Errorf("save filesystem: %w", err)
	}
	if err := d.SetRoots(root); err != nil {
		return err
	}
	return d.Finalize(ctx)
}

func driveDirArg(c *cli.Context) (string, error) {
	if c.Args().Len() < 1 {
		return "", fmt.Errorf("missing drive directory argument")
	}
	return c.Args().First(), nil
}
