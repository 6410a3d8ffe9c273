package object

import (
	"fmt"
	"maps"

	"github.com/paulmach/orb"

	"github.com/go-geogit/geogit/plumbing"
)

// Node is a named pointer from a tree to a feature or to another tree.
type Node struct {
	Name     string
	ObjectID plumbing.ObjectID
	// MetadataID is the id of the feature type describing the object, zero
	// when the object uses the default of its parent.
	MetadataID plumbing.ObjectID
	Type       plumbing.ObjectType
	Bounds     *orb.Bound
	// ExtraData is hashed with the node when not empty, in key order.
	ExtraData map[string]any
}

// NewFeatureNode returns a node pointing to a feature.
func NewFeatureNode(name string, id, metadataID plumbing.ObjectID, bounds *orb.Bound) Node {
	return Node{Name: name, ObjectID: id, MetadataID: metadataID, Type: plumbing.FeatureObject, Bounds: bounds}
}

// NewTreeNode returns a node pointing to a tree.
func NewTreeNode(name string, id, metadataID plumbing.ObjectID, bounds *orb.Bound) Node {
	return Node{Name: name, ObjectID: id, MetadataID: metadataID, Type: plumbing.TreeObject, Bounds: bounds}
}

// IsTree reports whether n points to a tree.
func (n Node) IsTree() bool {
	return n.Type == plumbing.TreeObject
}

// Bound implements Bounded.
func (n Node) Bound() (orb.Bound, bool) {
	if n.Bounds == nil {
		return orb.Bound{}, false
	}

	return *n.Bounds, true
}

// Equal reports whether both nodes have the same name and point to the same
// object with the same metadata.
func (n Node) Equal(o Node) bool {
	return n.Name == o.Name &&
		n.ObjectID == o.ObjectID &&
		n.MetadataID == o.MetadataID &&
		n.Type == o.Type
}

// Update returns a copy of n pointing to id with the given bounds.
func (n Node) Update(id plumbing.ObjectID, bounds *orb.Bound) Node {
	c := n
	c.ObjectID = id
	c.Bounds = bounds
	c.ExtraData = maps.Clone(n.ExtraData)
	return c
}

func (n Node) String() string {
	return fmt.Sprintf("%s %s %s", n.Type, n.ObjectID.Short(), n.Name)
}

// NodeRef is a node together with the path of the tree holding it.
type NodeRef struct {
	Node       Node
	ParentPath string
	// DefaultMetadataID is the metadata id inherited from the parent tree.
	DefaultMetadataID plumbing.ObjectID
}

// NewNodeRef returns a reference to node inside the tree at parentPath.
func NewNodeRef(node Node, parentPath string, defaultMetadataID plumbing.ObjectID) *NodeRef {
	return &NodeRef{Node: node, ParentPath: parentPath, DefaultMetadataID: defaultMetadataID}
}

// RootRef returns the reference to the root of a snapshot. Its name and
// parent path are empty.
func RootRef(t *Tree, defaultMetadataID plumbing.ObjectID) *NodeRef {
	return NewNodeRef(NewTreeNode("", t.ID(), plumbing.ZeroID, t.Bounds()), "", defaultMetadataID)
}

// Name returns the name of the node.
func (r *NodeRef) Name() string {
	return r.Node.Name
}

// ObjectID returns the id of the referenced object.
func (r *NodeRef) ObjectID() plumbing.ObjectID {
	return r.Node.ObjectID
}

// Type returns the type of the referenced object.
func (r *NodeRef) Type() plumbing.ObjectType {
	return r.Node.Type
}

// IsRoot reports whether r is the root of a snapshot.
func (r *NodeRef) IsRoot() bool {
	return r.Node.Name == "" && r.ParentPath == ""
}

// Path returns the full path of the node.
func (r *NodeRef) Path() string {
	return AppendChild(r.ParentPath, r.Node.Name)
}

// MetadataID returns the metadata id of the node, or the inherited default
// if the node has none.
func (r *NodeRef) MetadataID() plumbing.ObjectID {
	if r.Node.MetadataID.IsZero() {
		return r.DefaultMetadataID
	}

	return r.Node.MetadataID
}

// Child returns the reference to a node held by the tree r points to.
func (r *NodeRef) Child(n Node) *NodeRef {
	return NewNodeRef(n, r.Path(), r.MetadataID())
}

// Bound implements Bounded. A nil ref has no extent.
func (r *NodeRef) Bound() (orb.Bound, bool) {
	if r == nil {
		return orb.Bound{}, false
	}

	return r.Node.Bound()
}

// Equal reports whether both refs point to the same node at the same path.
func (r *NodeRef) Equal(o *NodeRef) bool {
	if r == nil || o == nil {
		return r == o
	}

	return r.ParentPath == o.ParentPath &&
		r.MetadataID() == o.MetadataID() &&
		r.Node.Equal(o.Node)
}

func (r *NodeRef) String() string {
	return fmt.Sprintf("%s %s %s", r.Node.Type, r.Node.ObjectID.Short(), r.Path())
}

// Bucket is one shard of a bucketed tree.
type Bucket struct {
	Index    int
	ObjectID plumbing.ObjectID
	Bounds   *orb.Bound
}

// Bound implements Bounded. A nil bucket has no extent.
func (b *Bucket) Bound() (orb.Bound, bool) {
	if b == nil || b.Bounds == nil {
		return orb.Bound{}, false
	}

	return *b.Bounds, true
}

func (b *Bucket) String() string {
	return fmt.Sprintf("bucket %d %s", b.Index, b.ObjectID.Short())
}
