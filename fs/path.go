// Package fs implements the encrypted private directory tree: a tree of
// sealed directory and file nodes stored in the private forest, with
// mutation, sharing, and history operations layered over a content
// blockstore. It is the spec's Filesystem component, grounded on
// tomb-common's src/filesystem tree shape and adapted to this module's
// forest/namefilter/cryptofs primitives.
package fs

import "strings"

// Path is an ordered sequence of text labels identifying a node in the
// private tree. An empty Path denotes the root directory.
type Path []string

// ParsePath splits a slash-separated string into a Path, ignoring empty
// segments so "/a/b/" and "a/b" are equivalent.
func ParsePath(s string) Path {
	parts := strings.Split(s, "/")
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String renders the path in slash-separated form.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Parent returns every segment but the last, and the last segment itself.
// Calling Parent on an empty Path is a programmer error; callers must check
// IsRoot first.
func (p Path) Parent() (Path, string) {
	if len(p) == 0 {
		return nil, ""
	}
	return p[:len(p)-1], p[len(p)-1]
}

// IsRoot reports whether p denotes the root directory.
func (p Path) IsRoot() bool {
	return len(p) == 0
}
