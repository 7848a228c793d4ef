package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/banyancomputer/banyanfs/drive"
	"github.com/banyancomputer/banyanfs/fs"
)

// InitDrive creates a fresh drive directory: two empty CARv2 containers, a
// new identity key, and an empty private filesystem owned by that key.
func InitDrive(c *cli.Context) error {
	dir, err := driveDirArg(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create drive directory %q: %w", dir, err)
	}

	d, err := openDrive(dir)
	if err != nil {
		return err
	}
	defer d.Close(c.Context)

	salt, err := loadOrCreateSalt(dir)
	if err != nil {
		return err
	}
	identity, err := loadOrCreateIdentity(dir)
	if err != nil {
		return err
	}

	_, root, err := fs.Init(c.Context, d, salt, identity.PublicKey())
	if err != nil {
		return fmt.Errorf("init filesystem: %w", err)
	}
	if err := d.SetRoots(root); err != nil {
		return err
	}
	if err := d.Finalize(c.Context); err != nil {
		return err
	}

	reg, err := openRegistry(dir)
	if err != nil {
		return err
	}
	defer reg.Close()

	rec := drive.Record{
		Name:         filepath.Base(dir),
		OriginPath:   c.String("origin"),
		LocalID:      uuid.New(),
		PreviousRoot: "",
	}
	if err := reg.Put(rec); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "initialized drive %s\n", dir)
	fmt.Fprintf(c.App.Writer, "local id:   %s\n", rec.LocalID)
	fmt.Fprintf(c.App.Writer, "root cid:   %s\n", root)
	return nil
}
