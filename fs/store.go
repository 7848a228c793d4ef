package fs

import bstore "github.com/ipfs/go-ipfs-blockstore"

// Store separates where filesystem structure (forest nodes, directory and
// file metadata, the share manager) is written from where file payload
// chunks are written. A drive's metadata container only ever sees
// Structure() writes; its content container backs both, so pulling
// metadata alone still yields a complete, browsable-but-content-empty
// tree (spec's rationale for keeping two containers in sync).
type Store interface {
	Structure() bstore.Blockstore
	Payload() bstore.Blockstore
}

// SingleStore routes both structure and payload through the same
// blockstore, the shape every fs-level test uses since they operate against
// one in-memory store.
type SingleStore struct {
	BS bstore.Blockstore
}

func (s SingleStore) Structure() bstore.Blockstore { return s.BS }
func (s SingleStore) Payload() bstore.Blockstore   { return s.BS }
