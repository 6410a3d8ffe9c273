package object

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"

	"github.com/go-geogit/geogit/plumbing"
)

var (
	// EmptyTree is the canonical, unique tree with no children.
	EmptyTree *Tree
	// EmptyTreeID is the id of EmptyTree.
	EmptyTreeID plumbing.ObjectID
)

func init() {
	t, err := NewLeafTree(nil, nil, 0, 0)
	if err != nil {
		panic(err)
	}

	EmptyTree = t
	EmptyTreeID = t.ID()
}

// Tree is one snapshot of a collection. A tree is either flat, holding
// feature and tree nodes sorted in canonical node order, or bucketed,
// holding buckets sorted by index that point to trees partitioning the same
// logical children.
type Tree struct {
	id        plumbing.ObjectID
	size      uint64
	treeCount int
	trees     []Node
	features  []Node
	buckets   []Bucket
}

func sortNodes(nodes []Node) {
	slices.SortFunc(nodes, func(a, b Node) int {
		return CompareNames(a.Name, b.Name)
	})
}

// NewLeafTree returns a flat tree. size and treeCount are the transitive
// feature and tree counts of its content.
func NewLeafTree(features, trees []Node, size uint64, treeCount int) (*Tree, error) {
	t := &Tree{
		size:      size,
		treeCount: treeCount,
		features:  slices.Clone(features),
		trees:     slices.Clone(trees),
	}

	sortNodes(t.features)
	sortNodes(t.trees)

	for _, n := range t.features {
		if n.Type != plumbing.FeatureObject {
			return nil, fmt.Errorf("%w: node %q is not a feature", plumbing.ErrInvalidType, n.Name)
		}
	}

	for _, n := range t.trees {
		if n.Type != plumbing.TreeObject {
			return nil, fmt.Errorf("%w: node %q is not a tree", plumbing.ErrInvalidType, n.Name)
		}
	}

	id, err := hashTree(t.trees, t.features, nil)
	if err != nil {
		return nil, err
	}

	t.id = id
	return t, nil
}

// NewBucketTree returns a bucketed tree. Bucket indices must be unique and
// lower than MaxBuckets(0).
func NewBucketTree(buckets []Bucket, size uint64, treeCount int) (*Tree, error) {
	t := &Tree{
		size:      size,
		treeCount: treeCount,
		buckets:   slices.Clone(buckets),
	}

	slices.SortFunc(t.buckets, func(a, b Bucket) int { return a.Index - b.Index })
	for i, b := range t.buckets {
		if b.Index < 0 || b.Index >= MaxBuckets(0) {
			return nil, fmt.Errorf("%w: bucket index %d out of range", plumbing.ErrCorruptTree, b.Index)
		}

		if i > 0 && t.buckets[i-1].Index == b.Index {
			return nil, fmt.Errorf("%w: duplicated bucket index %d", plumbing.ErrCorruptTree, b.Index)
		}

		if b.ObjectID == EmptyTreeID {
			return nil, fmt.Errorf("%w: bucket %d points to the empty tree", plumbing.ErrCorruptTree, b.Index)
		}
	}

	id, err := hashTree(nil, nil, t.buckets)
	if err != nil {
		return nil, err
	}

	t.id = id
	return t, nil
}

// ID returns the object id of the tree.
func (t *Tree) ID() plumbing.ObjectID {
	return t.id
}

// Type returns the object type of the tree.
func (t *Tree) Type() plumbing.ObjectType {
	return plumbing.TreeObject
}

// Size returns the number of features in the tree and all its subtrees.
func (t *Tree) Size() uint64 {
	return t.size
}

// TreeCount returns the number of trees below t, at any depth, excluding
// bucket trees.
func (t *Tree) TreeCount() int {
	return t.treeCount
}

// IsEmpty reports whether t is the empty tree.
func (t *Tree) IsEmpty() bool {
	return t.id == EmptyTreeID
}

// IsBucketed reports whether t holds buckets instead of nodes.
func (t *Tree) IsBucketed() bool {
	return len(t.buckets) > 0
}

// Features returns the feature nodes of a flat tree.
func (t *Tree) Features() []Node {
	return t.features
}

// Trees returns the tree nodes of a flat tree.
func (t *Tree) Trees() []Node {
	return t.trees
}

// Buckets returns the buckets of a bucketed tree, sorted by index.
func (t *Tree) Buckets() []Bucket {
	return t.buckets
}

// Bucket returns the bucket at index, if present.
func (t *Tree) Bucket(index int) (*Bucket, bool) {
	i, ok := slices.BinarySearchFunc(t.buckets, index, func(b Bucket, idx int) int {
		return b.Index - idx
	})
	if !ok {
		return nil, false
	}

	return &t.buckets[i], true
}

// NumChildren returns the number of direct nodes of a flat tree.
func (t *Tree) NumChildren() int {
	return len(t.features) + len(t.trees)
}

// Children returns every node of a flat tree, trees and features merged in
// canonical node order.
func (t *Tree) Children() []Node {
	out := make([]Node, 0, t.NumChildren())
	i, j := 0, 0
	for i < len(t.trees) && j < len(t.features) {
		if CompareNames(t.trees[i].Name, t.features[j].Name) <= 0 {
			out = append(out, t.trees[i])
			i++
		} else {
			out = append(out, t.features[j])
			j++
		}
	}

	out = append(out, t.trees[i:]...)
	return append(out, t.features[j:]...)
}

// Bounds returns the union of the extents of the children or buckets of t,
// or nil if none has an extent.
func (t *Tree) Bounds() *orb.Bound {
	var acc *orb.Bound
	for _, n := range t.trees {
		acc = ExpandBound(acc, n)
	}

	for _, n := range t.features {
		acc = ExpandBound(acc, n)
	}

	for i := range t.buckets {
		acc = ExpandBound(acc, &t.buckets[i])
	}

	return acc
}

func (t *Tree) String() string {
	if t.IsBucketed() {
		return fmt.Sprintf("tree %s size=%d trees=%d buckets=%d", t.id.Short(), t.size, t.treeCount, len(t.buckets))
	}

	return fmt.Sprintf("tree %s size=%d trees=%d children=%d", t.id.Short(), t.size, t.treeCount, t.NumChildren())
}
