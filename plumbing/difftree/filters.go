package difftree

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-geogit/geogit/plumbing/object"
)

// PathFilter forwards the events of the trees and features at, or under, a
// set of paths. Trees leading to a filter path are walked without being
// forwarded, as are the buckets of those trees the filter paths fall into.
type PathFilter struct {
	ForwardingConsumer
	paths []string
}

// NewPathFilter returns a filter forwarding to delegate the events under
// paths. An empty path matches everything.
func NewPathFilter(paths []string, delegate Consumer) *PathFilter {
	var clean []string
	for _, p := range paths {
		p = strings.Trim(p, object.PathSeparator)
		if p == "" {
			return &PathFilter{ForwardingConsumer: ForwardingConsumer{Delegate: delegate}}
		}

		clean = append(clean, p)
	}

	sort.Strings(clean)
	return &PathFilter{ForwardingConsumer: ForwardingConsumer{Delegate: delegate}, paths: clean}
}

type pathMatch int

const (
	pathOutside pathMatch = iota
	pathAncestor
	pathMatches
)

func (f *PathFilter) match(path string) pathMatch {
	if len(f.paths) == 0 {
		return pathMatches
	}

	m := pathOutside
	for _, p := range f.paths {
		if path == p || object.IsChild(p, path) {
			return pathMatches
		}

		if object.IsChild(path, p) {
			m = pathAncestor
		}
	}

	return m
}

// leadsToFilter reports whether the bucket at index of the tree at path
// holds the child of path some filter path goes through.
func (f *PathFilter) leadsToFilter(path string, index BucketIndex) bool {
	for _, p := range f.paths {
		if !object.IsChild(path, p) {
			continue
		}

		rest := p
		if path != "" {
			rest = p[len(path)+1:]
		}

		child, _, _ := strings.Cut(rest, object.PathSeparator)
		if index.IsPrefixOf(object.AllBuckets(child)) {
			return true
		}
	}

	return false
}

func (f *PathFilter) Tree(left, right *object.NodeRef) bool {
	if isRoot(left, right) {
		return f.Delegate.Tree(left, right)
	}

	switch f.match(either(left, right).Path()) {
	case pathMatches:
		return f.Delegate.Tree(left, right)
	case pathAncestor:
		return true
	default:
		return false
	}
}

func (f *PathFilter) EndTree(left, right *object.NodeRef) {
	if isRoot(left, right) || f.match(either(left, right).Path()) == pathMatches {
		f.Delegate.EndTree(left, right)
	}
}

func (f *PathFilter) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	path := either(lp, rp).Path()
	switch f.match(path) {
	case pathMatches:
		return f.Delegate.Bucket(lp, rp, index, left, right)
	case pathAncestor:
		return f.leadsToFilter(path, index)
	default:
		return false
	}
}

func (f *PathFilter) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
	if f.match(either(lp, rp).Path()) == pathMatches {
		f.Delegate.EndBucket(lp, rp, index, left, right)
	}
}

func (f *PathFilter) Feature(left, right *object.NodeRef) {
	if f.match(either(left, right).Path()) == pathMatches {
		f.Delegate.Feature(left, right)
	}
}

// ChangeTypeFilter forwards the features of a single kind of change. Trees
// and buckets present on both sides are always walked, one sided ones only
// when they can hold changes of that kind.
type ChangeTypeFilter struct {
	ForwardingConsumer
	changeType object.ChangeType
}

// NewChangeTypeFilter returns a filter forwarding to delegate the changes
// of type t.
func NewChangeTypeFilter(t object.ChangeType, delegate Consumer) *ChangeTypeFilter {
	return &ChangeTypeFilter{ForwardingConsumer: ForwardingConsumer{Delegate: delegate}, changeType: t}
}

func (f *ChangeTypeFilter) treeApplies(hasLeft, hasRight bool) bool {
	if hasLeft && hasRight {
		return true
	}

	switch f.changeType {
	case object.Added:
		return !hasLeft
	case object.Removed:
		return !hasRight
	default:
		return false
	}
}

func (f *ChangeTypeFilter) Tree(left, right *object.NodeRef) bool {
	if isRoot(left, right) || f.treeApplies(left != nil, right != nil) {
		return f.Delegate.Tree(left, right)
	}

	return false
}

func (f *ChangeTypeFilter) EndTree(left, right *object.NodeRef) {
	if isRoot(left, right) || f.treeApplies(left != nil, right != nil) {
		f.Delegate.EndTree(left, right)
	}
}

func (f *ChangeTypeFilter) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	return f.treeApplies(left != nil, right != nil) && f.Delegate.Bucket(lp, rp, index, left, right)
}

func (f *ChangeTypeFilter) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
	if f.treeApplies(left != nil, right != nil) {
		f.Delegate.EndBucket(lp, rp, index, left, right)
	}
}

func (f *ChangeTypeFilter) Feature(left, right *object.NodeRef) {
	if object.ChangeTypeOf(left != nil, right != nil) == f.changeType {
		f.Delegate.Feature(left, right)
	}
}

// Limiter forwards at most a given number of features. Once the limit is
// hit no further tree or bucket is walked.
type Limiter struct {
	ForwardingConsumer
	limit int64
	count atomic.Int64

	mu sync.Mutex
	// trees and buckets record whether each open Tree or Bucket call was
	// forwarded, so its end call can be forwarded too.
	trees, buckets []bool
}

// NewLimiter returns a limiter forwarding up to limit features to delegate.
func NewLimiter(limit int64, delegate Consumer) *Limiter {
	return &Limiter{ForwardingConsumer: ForwardingConsumer{Delegate: delegate}, limit: limit}
}

// Reached reports whether the limit was hit.
func (f *Limiter) Reached() bool {
	return f.count.Load() >= f.limit
}

func (f *Limiter) push(stack *[]bool, forwarded bool) {
	f.mu.Lock()
	*stack = append(*stack, forwarded)
	f.mu.Unlock()
}

func (f *Limiter) pop(stack *[]bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := *stack
	if len(s) == 0 {
		return false
	}

	top := s[len(s)-1]
	*stack = s[:len(s)-1]
	return top
}

func (f *Limiter) Tree(left, right *object.NodeRef) bool {
	if f.Reached() {
		f.push(&f.trees, false)
		return false
	}

	f.push(&f.trees, true)
	return f.Delegate.Tree(left, right)
}

func (f *Limiter) EndTree(left, right *object.NodeRef) {
	if f.pop(&f.trees) {
		f.Delegate.EndTree(left, right)
	}
}

func (f *Limiter) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	if f.Reached() {
		f.push(&f.buckets, false)
		return false
	}

	f.push(&f.buckets, true)
	return f.Delegate.Bucket(lp, rp, index, left, right)
}

func (f *Limiter) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
	if f.pop(&f.buckets) {
		f.Delegate.EndBucket(lp, rp, index, left, right)
	}
}

func (f *Limiter) Feature(left, right *object.NodeRef) {
	if f.count.Add(1) > f.limit {
		return
	}

	f.Delegate.Feature(left, right)
}

// Predicate decides whether a node or bucket is kept.
type Predicate func(object.Bounded) bool

// PredicateFilter forwards the pairs with a side the predicate accepts.
// The root is always forwarded.
type PredicateFilter struct {
	ForwardingConsumer
	pred Predicate
}

// NewPredicateFilter returns a filter forwarding to delegate the pairs pred
// accepts.
func NewPredicateFilter(pred Predicate, delegate Consumer) *PredicateFilter {
	return &PredicateFilter{ForwardingConsumer: ForwardingConsumer{Delegate: delegate}, pred: pred}
}

func (f *PredicateFilter) refs(left, right *object.NodeRef) bool {
	return (left != nil && f.pred(left)) || (right != nil && f.pred(right))
}

func (f *PredicateFilter) buckets(left, right *object.Bucket) bool {
	return (left != nil && f.pred(left)) || (right != nil && f.pred(right))
}

func (f *PredicateFilter) Tree(left, right *object.NodeRef) bool {
	if isRoot(left, right) || f.refs(left, right) {
		return f.Delegate.Tree(left, right)
	}

	return false
}

func (f *PredicateFilter) EndTree(left, right *object.NodeRef) {
	if isRoot(left, right) || f.refs(left, right) {
		f.Delegate.EndTree(left, right)
	}
}

func (f *PredicateFilter) Bucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) bool {
	return f.buckets(left, right) && f.Delegate.Bucket(lp, rp, index, left, right)
}

func (f *PredicateFilter) EndBucket(lp, rp *object.NodeRef, index BucketIndex, left, right *object.Bucket) {
	if f.buckets(left, right) {
		f.Delegate.EndBucket(lp, rp, index, left, right)
	}
}

func (f *PredicateFilter) Feature(left, right *object.NodeRef) {
	if f.refs(left, right) {
		f.Delegate.Feature(left, right)
	}
}
