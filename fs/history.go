package fs

import "context"

// historyCeiling bounds how many revisions History will ever return, a
// backstop against a pathologically long or corrupted forest chain.
const historyCeiling = 1_000_000

// History returns every revision of the root directory this filesystem's
// forest has accumulated, oldest first: current_ref at the end,
// original_ref at the start. All revisions share rootRef's AccessKey, so
// only the CID changes between entries.
func (f *Filesystem) History(_ context.Context) []PrivateRef {
	revisions := f.forest.History(f.rootName)
	if len(revisions) > historyCeiling {
		revisions = revisions[len(revisions)-historyCeiling:]
	}
	out := make([]PrivateRef, len(revisions))
	for i, c := range revisions {
		out[i] = PrivateRef{CID: c, Key: f.rootRef.Key}
	}
	return out
}

// RootAt loads the root directory snapshot at ref, for iterating over
// History's results.
func (f *Filesystem) RootAt(ctx context.Context, ref PrivateRef) ([]EntryInfo, error) {
	n, err := f.loadDir(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := make([]EntryInfo, 0, len(n.Children))
	for name, c := range n.Children {
		out = append(out, EntryInfo{Name: name, IsFile: c.IsFile})
	}
	return out, nil
}
