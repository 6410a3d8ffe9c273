package difftree

import (
	"fmt"
	"strings"

	"github.com/go-geogit/geogit/plumbing/object"
)

// Consumer receives the events of a Walk. Either side of a pair may be nil,
// never both. Implementations used with a Walker shared by several
// goroutines must be safe for concurrent use.
type Consumer interface {
	// Tree is called for a pair of tree nodes that differ. Returning false
	// prunes the pair: its contents are not walked.
	Tree(left, right *object.NodeRef) bool
	// EndTree closes every Tree call, whatever it returned.
	EndTree(left, right *object.NodeRef)
	// Bucket is called for a pair of buckets at the same index that differ.
	// leftParent and rightParent are the trees holding them. Returning false
	// prunes the pair.
	Bucket(leftParent, rightParent *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool
	// EndBucket closes every Bucket call, whatever it returned, so that
	// consumers keeping a stack of open buckets stay balanced.
	EndBucket(leftParent, rightParent *object.NodeRef, index BucketIndex, left, right *object.Bucket)
	// Feature is called for an added, removed or changed feature.
	Feature(left, right *object.NodeRef)
}

// NoopConsumer descends everywhere and ignores every event. Embed it to
// implement only the methods a consumer needs.
type NoopConsumer struct{}

func (NoopConsumer) Tree(left, right *object.NodeRef) bool { return true }

func (NoopConsumer) EndTree(left, right *object.NodeRef) {}

func (NoopConsumer) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	return true
}

func (NoopConsumer) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
}

func (NoopConsumer) Feature(left, right *object.NodeRef) {}

// ForwardingConsumer forwards every event to Delegate. Filters embed it and
// override the events they filter.
type ForwardingConsumer struct {
	Delegate Consumer
}

func (c ForwardingConsumer) Tree(left, right *object.NodeRef) bool {
	return c.Delegate.Tree(left, right)
}

func (c ForwardingConsumer) EndTree(left, right *object.NodeRef) {
	c.Delegate.EndTree(left, right)
}

func (c ForwardingConsumer) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	return c.Delegate.Bucket(lp, rp, index, left, right)
}

func (c ForwardingConsumer) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
	c.Delegate.EndBucket(lp, rp, index, left, right)
}

func (c ForwardingConsumer) Feature(left, right *object.NodeRef) {
	c.Delegate.Feature(left, right)
}

// BucketIndex is the path of bucket indices leading from a tree to one of
// its bucket trees. Its i-th element is the index at bucket depth i.
type BucketIndex []int

// Depth returns the bucket depth of the last index.
func (b BucketIndex) Depth() int {
	return len(b) - 1
}

// Last returns the last index, or -1 for an empty path.
func (b BucketIndex) Last() int {
	if len(b) == 0 {
		return -1
	}

	return b[len(b)-1]
}

// Child returns the path to bucket i of the bucket tree at b.
func (b BucketIndex) Child(i int) BucketIndex {
	out := make(BucketIndex, len(b), len(b)+1)
	copy(out, b)
	return append(out, i)
}

// IsPrefixOf reports whether every index of b matches the start of path.
func (b BucketIndex) IsPrefixOf(path []int) bool {
	if len(b) > len(path) {
		return false
	}

	for i, idx := range b {
		if path[i] != idx {
			return false
		}
	}

	return true
}

func (b BucketIndex) String() string {
	parts := make([]string, len(b))
	for i, idx := range b {
		parts[i] = fmt.Sprint(idx)
	}

	return "[" + strings.Join(parts, ",") + "]"
}

// isRoot reports whether the pair is the synthetic root of a walk.
func isRoot(left, right *object.NodeRef) bool {
	ref := left
	if ref == nil {
		ref = right
	}

	return ref != nil && ref.IsRoot()
}

func either(left, right *object.NodeRef) *object.NodeRef {
	if left != nil {
		return left
	}

	return right
}
