package difftree

import (
	"fmt"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

// DiffEntry is a difference between two snapshots: a node that was added
// (Old is nil), removed (New is nil) or changed.
type DiffEntry struct {
	Old *object.NodeRef
	New *object.NodeRef
}

// NewDiffEntry returns the entry for a pair of refs, at least one of them
// not nil.
func NewDiffEntry(old, new *object.NodeRef) *DiffEntry {
	return &DiffEntry{Old: old, New: new}
}

// ChangeType returns the kind of change e represents.
func (e *DiffEntry) ChangeType() object.ChangeType {
	return object.ChangeTypeOf(e.Old != nil, e.New != nil)
}

// Path returns the path of the changed node, the new one if present.
func (e *DiffEntry) Path() string {
	return either(e.New, e.Old).Path()
}

// OldID returns the id of the old object, or plumbing.ZeroID if added.
func (e *DiffEntry) OldID() plumbing.ObjectID {
	if e.Old == nil {
		return plumbing.ZeroID
	}

	return e.Old.ObjectID()
}

// NewID returns the id of the new object, or plumbing.ZeroID if removed.
func (e *DiffEntry) NewID() plumbing.ObjectID {
	if e.New == nil {
		return plumbing.ZeroID
	}

	return e.New.ObjectID()
}

// IsTree reports whether the entry is about a tree node.
func (e *DiffEntry) IsTree() bool {
	return either(e.New, e.Old).Type() == plumbing.TreeObject
}

func (e *DiffEntry) String() string {
	return fmt.Sprintf("<%s %s %s..%s>", e.ChangeType(), e.Path(), e.OldID().Short(), e.NewID().Short())
}
