package difftree

import (
	"fmt"
	"sync/atomic"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
)

// DiffObjectCount is the number of changed objects between two trees.
type DiffObjectCount struct {
	FeaturesAdded, FeaturesRemoved, FeaturesChanged int64
	TreesAdded, TreesRemoved, TreesChanged          int64
}

// FeatureCount returns the number of changed features.
func (c DiffObjectCount) FeatureCount() int64 {
	return c.FeaturesAdded + c.FeaturesRemoved + c.FeaturesChanged
}

// TreeCount returns the number of changed trees.
func (c DiffObjectCount) TreeCount() int64 {
	return c.TreesAdded + c.TreesRemoved + c.TreesChanged
}

// Count returns the number of changed objects.
func (c DiffObjectCount) Count() int64 {
	return c.FeatureCount() + c.TreeCount()
}

func (c DiffObjectCount) String() string {
	return fmt.Sprintf("features: +%d -%d ~%d; trees: +%d -%d ~%d",
		c.FeaturesAdded, c.FeaturesRemoved, c.FeaturesChanged,
		c.TreesAdded, c.TreesRemoved, c.TreesChanged)
}

// CountConsumer counts the changed features and trees. A tree or bucket
// present on a single side is counted from its size, without walking it.
type CountConsumer struct {
	NoopConsumer
	errs
	leftSrc, rightSrc storer.ObjectGetter

	featuresAdded, featuresRemoved, featuresChanged atomic.Int64
	treesAdded, treesRemoved, treesChanged          atomic.Int64
}

// NewCountConsumer returns a consumer resolving one sided trees from the
// source of their side.
func NewCountConsumer(leftSrc, rightSrc storer.ObjectGetter) *CountConsumer {
	return &CountConsumer{leftSrc: leftSrc, rightSrc: rightSrc}
}

// whole counts the content of the tree id as added or removed. node tells
// whether the tree itself is a tree node, and not a bucket.
func (c *CountConsumer) whole(src storer.ObjectGetter, id plumbing.ObjectID, node, added bool) {
	t, err := storer.ResolveTree(src, id)
	if err != nil {
		c.record(err)
		return
	}

	features, trees := int64(t.Size()), int64(t.TreeCount())
	if node {
		trees++
	}

	if added {
		c.featuresAdded.Add(features)
		c.treesAdded.Add(trees)
	} else {
		c.featuresRemoved.Add(features)
		c.treesRemoved.Add(trees)
	}
}

func (c *CountConsumer) Tree(left, right *object.NodeRef) bool {
	switch {
	case isRoot(left, right):
		return true
	case left == nil:
		c.whole(c.rightSrc, right.ObjectID(), true, true)
		return false
	case right == nil:
		c.whole(c.leftSrc, left.ObjectID(), true, false)
		return false
	default:
		c.treesChanged.Add(1)
		return true
	}
}

func (c *CountConsumer) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	switch {
	case left == nil:
		c.whole(c.rightSrc, right.ObjectID, false, true)
		return false
	case right == nil:
		c.whole(c.leftSrc, left.ObjectID, false, false)
		return false
	default:
		return true
	}
}

func (c *CountConsumer) Feature(left, right *object.NodeRef) {
	switch object.ChangeTypeOf(left != nil, right != nil) {
	case object.Added:
		c.featuresAdded.Add(1)
	case object.Removed:
		c.featuresRemoved.Add(1)
	default:
		c.featuresChanged.Add(1)
	}
}

// Result returns the counts so far.
func (c *CountConsumer) Result() DiffObjectCount {
	return DiffObjectCount{
		FeaturesAdded:   c.featuresAdded.Load(),
		FeaturesRemoved: c.featuresRemoved.Load(),
		FeaturesChanged: c.featuresChanged.Load(),
		TreesAdded:      c.treesAdded.Load(),
		TreesRemoved:    c.treesRemoved.Load(),
		TreesChanged:    c.treesChanged.Load(),
	}
}
