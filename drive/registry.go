// Package drive owns the on-disk state of one local drive: two CARv2
// containers (metadata and content), a persistent record of the drive's
// identity and remote pairing, and the set of content CIDs deleted since
// the last successful push. Package-level state is kept out of the
// picture entirely; every operation takes an explicit *Drive or *Registry
// handle, mirroring this module's fine-grained-lock design note.
package drive

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/banyancomputer/banyanfs/internal/banyanlog"
)

var logger = banyanlog.New("drive")

// Record is the registry's persisted view of one local drive.
type Record struct {
	Name          string
	OriginPath    string
	LocalID       uuid.UUID
	RemoteID      string
	StorageHost   string
	StorageTicket string // authorization token for StorageHost
	PreviousRoot  string // CID string, empty if never synced
}

// Registry persists Records in an embedded key-value store, keyed by
// LocalID, so a process restart can rediscover every drive it was
// managing without re-scanning the filesystem.
type Registry struct {
	db *pebble.DB
}

// OpenRegistry opens (creating if absent) a pebble database at path as a
// drive registry.
func OpenRegistry(path string) (*Registry, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open drive registry %q: %w", path, err)
	}
	return &Registry{db: db}, nil
}

// Close releases the registry's database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

func registryKey(id uuid.UUID) []byte {
	return []byte("drive/" + id.String())
}

// Put persists rec, keyed by its LocalID.
func (r *Registry) Put(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode drive record: %w", err)
	}
	if err := r.db.Set(registryKey(rec.LocalID), raw, pebble.Sync); err != nil {
		return fmt.Errorf("persist drive record %s: %w", rec.LocalID, err)
	}
	return nil
}

// Get loads the record for id.
func (r *Registry) Get(id uuid.UUID) (Record, error) {
	var rec Record
	raw, closer, err := r.db.Get(registryKey(id))
	if err != nil {
		return rec, fmt.Errorf("load drive record %s: %w", id, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode drive record %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the record for id, called when a drive is explicitly
// removed.
func (r *Registry) Delete(id uuid.UUID) error {
	return r.db.Delete(registryKey(id), pebble.Sync)
}

// List returns every registered drive record.
func (r *Registry) List() ([]Record, error) {
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("drive/"),
		UpperBound: []byte("drive0"), // '0' sorts just after '/'
	})
	if err != nil {
		return nil, fmt.Errorf("list drive records: %w", err)
	}
	defer iter.Close()

	var out []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			logger.Warnf("skipping corrupt drive record at key %q: %v", iter.Key(), err)
			continue
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}
