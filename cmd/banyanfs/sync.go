package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/banyancomputer/banyanfs/auth"
	"github.com/banyancomputer/banyanfs/drive"
	"github.com/banyancomputer/banyanfs/fs"
	"github.com/banyancomputer/banyanfs/syncengine"
)

// recordByName finds the registry record matching dir's name, the
// convention `banyanfs init` establishes between a drive directory and its
// registry entry.
func recordByName(reg *drive.Registry, dir string) (drive.Record, error) {
	name := filepath.Base(dir)
	records, err := reg.List()
	if err != nil {
		return drive.Record{}, err
	}
	for _, rec := range records {
		if rec.Name == name {
			return rec, nil
		}
	}
	return drive.Record{Name: name}, nil
}

var serverFlag = &cli.StringFlag{
	Name:     "server",
	Usage:    "base URL of the Banyan storage server",
	Required: true,
}

// newEngine opens dir's drive and registry record and wires an Engine
// against the server named by --server, minting a fresh bearer token from
// this machine's signing key.
func newEngine(c *cli.Context, dir string) (*syncengine.Engine, func(), error) {
	d, err := openDrive(dir)
	if err != nil {
		return nil, nil, err
	}
	reg, err := openRegistry(dir)
	if err != nil {
		d.Close(c.Context)
		return nil, nil, err
	}

	signingKey, err := loadOrCreateSigningKey(dir)
	if err != nil {
		reg.Close()
		d.Close(c.Context)
		return nil, nil, err
	}
	token, err := auth.Mint(signingKey, uuid.New(), 0)
	if err != nil {
		reg.Close()
		d.Close(c.Context)
		return nil, nil, err
	}

	rec, err := recordByName(reg, dir)
	if err != nil {
		reg.Close()
		d.Close(c.Context)
		return nil, nil, err
	}

	client := syncengine.NewHTTPClient(c.String("server"), token)
	eng := &syncengine.Engine{
		Client:   client,
		Drive:    d,
		Registry: reg,
		Record:   rec,
	}
	cleanup := func() {
		reg.Close()
		d.Close(c.Context)
	}
	return eng, cleanup, nil
}

// Status classifies dir's drive against the remote and prints the result
// without taking any reconciling action.
func Status(c *cli.Context) error {
	dir, err := driveDirArg(c)
	if err != nil {
		return err
	}
	eng, cleanup, err := newEngine(c, dir)
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := eng.Classify(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %s\n", dir, state)
	return nil
}

// Sync classifies dir's drive against the remote and then reconciles it:
// pushing, pulling, or reconstructing as the classified state requires.
func Sync(c *cli.Context) error {
	dir, err := driveDirArg(c)
	if err != nil {
		return err
	}
	eng, cleanup, err := newEngine(c, dir)
	if err != nil {
		return err
	}
	defer cleanup()

	if root := eng.Drive.CurrentRoot(); root.Defined() {
		salt, err := loadOrCreateSalt(dir)
		if err != nil {
			return err
		}
		identity, err := loadOrCreateIdentity(dir)
		if err != nil {
			return err
		}
		filesystem, err := fs.Unlock(c.Context, eng.Drive, salt, root, identity)
		if err != nil {
			return fmt.Errorf("unlock drive at %q: %w", dir, err)
		}
		eng.Filesystem = filesystem
	}

	state, err := eng.Classify(c.Context)
	if err != nil {
		return err
	}
	result, err := eng.Reconcile(c.Context, state)
	if err != nil {
		return fmt.Errorf("reconcile %s from %s: %w", dir, state, err)
	}
	if eng.Record.LocalID == (uuid.UUID{}) {
		eng.Record.LocalID = uuid.New()
	}
	if err := eng.Registry.Put(eng.Record); err != nil {
		return fmt.Errorf("persist registry record for %s: %w", dir, err)
	}

	if result.Partial {
		fmt.Fprintf(c.App.Writer, "%s: %s (partial: %s)\n", dir, result.State, result.Message)
	} else {
		fmt.Fprintf(c.App.Writer, "%s: %s — %s\n", dir, result.State, result.Message)
	}
	return nil
}
