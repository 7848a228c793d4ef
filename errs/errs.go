// Package errs centralizes the error taxonomy shared by the CAR container
// engine, the encrypted filesystem layer, and the sync engine. Container and
// codec errors propagate to the Filesystem layer unchanged; Filesystem
// errors propagate to the Sync engine unchanged. The Sync engine is the only
// layer that renders a user-facing string.
package errs

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Kind identifies a class of error in the taxonomy. Kind values are stable
// and may be compared through Error.Is or the package-level Is helper below.
type Kind int

const (
	KindBadPragma Kind = iota
	KindCorruptFrame
	KindCidMismatch
	KindMissingBlock
	KindMissingMetadata
	KindNodeNotFound
	KindBadCrypto
	KindBadAuth
	KindTransport
	KindProtocolMismatch
	KindIncompleteData
	KindValueTooLarge
	KindFinalized
)

func (k Kind) String() string {
	switch k {
	case KindBadPragma:
		return "BadPragma"
	case KindCorruptFrame:
		return "CorruptFrame"
	case KindCidMismatch:
		return "CidMismatch"
	case KindMissingBlock:
		return "MissingBlock"
	case KindMissingMetadata:
		return "MissingMetadata"
	case KindNodeNotFound:
		return "NodeNotFound"
	case KindBadCrypto:
		return "BadCrypto"
	case KindBadAuth:
		return "BadAuth"
	case KindTransport:
		return "Transport"
	case KindProtocolMismatch:
		return "ProtocolMismatch"
	case KindIncompleteData:
		return "IncompleteData"
	case KindValueTooLarge:
		return "ValueTooLarge"
	case KindFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried through the propagation chain.
// A Path or CID is attached when relevant to the kind, so a caller several
// layers up (the sync engine) can still render a precise message.
type Error struct {
	Kind Kind
	Path string
	CID  cid.Cid
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	case e.CID.Defined() && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.CID, e.Err)
	case e.CID.Defined():
		return fmt.Sprintf("%s: %s", e.Kind, e.CID)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, which lets
// callers write errors.Is(err, &errs.Error{Kind: errs.KindMissingBlock}) or,
// more conveniently, use the package-level Is helper below.
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		return e.Kind == o.Kind
	}
	return false
}

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func WithPath(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func WithCID(kind Kind, c cid.Cid, err error) *Error {
	return &Error{Kind: kind, CID: c, Err: err}
}

// MissingBlock reports a block absent from a container's index/payload.
func MissingBlock(c cid.Cid) *Error {
	return &Error{Kind: KindMissingBlock, CID: c}
}

// MissingMetadata reports a missing required label in the root label-map
// (spec §4.5 Unlock: FOREST, SHARE_MANAGER, build-tag strings).
func MissingMetadata(label string) *Error {
	return &Error{Kind: KindMissingMetadata, Path: label}
}

// NodeNotFound reports a path that does not resolve within the private tree.
func NodeNotFound(path string) *Error {
	return &Error{Kind: KindNodeNotFound, Path: path}
}

// Transport reports a wire-level HTTP error, carrying the status code in Err.
func Transport(status int) *Error {
	return &Error{Kind: KindTransport, Err: fmt.Errorf("http status %d", status)}
}

// ProtocolMismatch reports an expected/got container or protocol version
// disagreement.
func ProtocolMismatch(expected, got uint64) *Error {
	return &Error{Kind: KindProtocolMismatch, Err: fmt.Errorf("expected %d, got %d", expected, got)}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
