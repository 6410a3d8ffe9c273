// Package difftree computes the differences between two trees with a paired
// pre-order walk, and provides the consumers and filters the walk events
// flow through.
package difftree

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/sets/treeset"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/utils/trace"
)

// Walker compares two trees. Subtrees and buckets with the same id on both
// sides are never visited, so the cost of a walk depends on the size of the
// difference and not on the size of the trees.
type Walker struct {
	left, right       *object.Tree
	leftSrc, rightSrc storer.ObjectGetter
	defaultMetadataID plumbing.ObjectID
	preserveOrder     bool

	aborted atomic.Bool

	mu     sync.Mutex
	active int
	done   chan struct{}
}

// NewWalker returns a walker over the differences from left to right.
// Objects of each side are resolved from its own source. A nil tree is the
// empty tree.
func NewWalker(left, right *object.Tree, leftSrc, rightSrc storer.ObjectGetter) *Walker {
	if left == nil {
		left = object.EmptyTree
	}

	if right == nil {
		right = object.EmptyTree
	}

	return &Walker{left: left, right: right, leftSrc: leftSrc, rightSrc: rightSrc}
}

// SetDefaultMetadataID sets the metadata id inherited by the root trees.
func (w *Walker) SetDefaultMetadataID(id plumbing.ObjectID) {
	w.defaultMetadataID = id
}

// SetPreserveIterationOrder makes bucket pairs be visited in index order.
// By default they are visited as soon as their trees are fetched.
func (w *Walker) SetPreserveIterationOrder(preserve bool) {
	w.preserveOrder = preserve
}

// Abort stops every running walk at its next step. It can be called from
// any goroutine, any number of times.
func (w *Walker) Abort() {
	w.aborted.Store(true)
}

// Aborted reports whether Abort was called.
func (w *Walker) Aborted() bool {
	return w.aborted.Load()
}

// AwaitTermination blocks until every started Walk has returned.
func (w *Walker) AwaitTermination() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (w *Walker) start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active == 0 {
		w.done = make(chan struct{})
	}
	w.active++
}

func (w *Walker) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.active--
	if w.active == 0 {
		close(w.done)
	}
}

// Walk sends the differences between both trees to c, starting with the
// root pair named "". An aborted walk returns nil, a cancelled context
// returns its error.
func (w *Walker) Walk(ctx context.Context, c Consumer) error {
	w.start()
	defer w.finish()

	if w.left.ID() == w.right.ID() {
		return nil
	}

	wk := &walk{Walker: w, ctx: ctx, c: c}
	if err := wk.tree(
		object.RootRef(w.left, w.defaultMetadataID),
		object.RootRef(w.right, w.defaultMetadataID),
	); err != nil {
		return err
	}

	if w.aborted.Load() {
		return nil
	}

	return ctx.Err()
}

type walk struct {
	*Walker
	ctx context.Context
	c   Consumer
}

func (w *walk) stopped() bool {
	return w.aborted.Load() || w.ctx.Err() != nil
}

func (w *walk) tree(l, r *object.NodeRef) error {
	if l.Equal(r) || w.stopped() {
		return nil
	}

	if w.c.Tree(l, r) {
		lt, rt := w.left, w.right
		if !isRoot(l, r) {
			var err error
			if lt, err = resolve(w.leftSrc, l); err != nil {
				return err
			}

			if rt, err = resolve(w.rightSrc, r); err != nil {
				return err
			}
		}

		if err := w.contents(l, r, lt, rt, nil); err != nil {
			return err
		}
	}

	w.c.EndTree(l, r)
	return nil
}

func resolve(src storer.ObjectGetter, ref *object.NodeRef) (*object.Tree, error) {
	if ref == nil {
		return object.EmptyTree, nil
	}

	return storer.ResolveTree(src, ref.ObjectID())
}

// contents walks lt and rt, the trees or bucket trees at index of l and r.
func (w *walk) contents(l, r *object.NodeRef, lt, rt *object.Tree, index BucketIndex) error {
	if lt.ID() == rt.ID() || w.stopped() {
		return nil
	}

	switch lb, rb := lt.IsBucketed(), rt.IsBucketed(); {
	case !lb && !rb:
		return w.leafLeaf(l, r, lt.Children(), rt.Children())
	case lb && rb:
		return w.bucketBucket(l, r, lt, rt, index)
	case rb:
		return w.leafBucket(l, r, lt.Children(), rt, index, true)
	default:
		return w.leafBucket(l, r, rt.Children(), lt, index, false)
	}
}

func (w *walk) leafLeaf(l, r *object.NodeRef, left, right []object.Node) error {
	i, j := 0, 0
	for i < len(left) || j < len(right) {
		if w.stopped() {
			return nil
		}

		cmp := 0
		switch {
		case i == len(left):
			cmp = 1
		case j == len(right):
			cmp = -1
		default:
			cmp = object.CompareNames(left[i].Name, right[j].Name)
		}

		var err error
		switch {
		case cmp < 0:
			err = w.node(l.Child(left[i]), nil)
			i++
		case cmp > 0:
			err = w.node(nil, r.Child(right[j]))
			j++
		default:
			a, b := left[i], right[j]
			i++
			j++

			switch {
			case a.Equal(b):
			case a.Type != b.Type:
				// a feature replaced by a tree, or the other way around
				if err = w.node(l.Child(a), nil); err == nil {
					err = w.node(nil, r.Child(b))
				}
			default:
				err = w.node(l.Child(a), r.Child(b))
			}
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (w *walk) node(l, r *object.NodeRef) error {
	if either(l, r).Node.IsTree() {
		return w.tree(l, r)
	}

	w.c.Feature(l, r)
	return nil
}

func (w *walk) bucketBucket(l, r *object.NodeRef, lt, rt *object.Tree, index BucketIndex) error {
	depth := len(index)
	if err := checkBuckets(lt, depth); err != nil {
		return err
	}

	if err := checkBuckets(rt, depth); err != nil {
		return err
	}

	indices := treeset.NewWithIntComparator()
	for _, b := range lt.Buckets() {
		indices.Add(b.Index)
	}

	for _, b := range rt.Buckets() {
		indices.Add(b.Index)
	}

	var pairs []*pair
	for _, v := range indices.Values() {
		idx := v.(int)
		lb, _ := lt.Bucket(idx)
		rb, _ := rt.Bucket(idx)
		if lb != nil && rb != nil && lb.ObjectID == rb.ObjectID {
			continue
		}

		pairs = append(pairs, &pair{index: index.Child(idx), left: lb, right: rb})
	}

	return w.visitPairs(pairs, func(p *pair) error {
		trace.Walk.Printf("difftree: bucket %s%s", either(l, r).Path(), p.index)
		if w.c.Bucket(l, r, p.index, p.left, p.right) {
			if err := w.contents(l, r, p.leftTree, p.rightTree, p.index); err != nil {
				return err
			}
		}

		w.c.EndBucket(l, r, p.index, p.left, p.right)
		return nil
	})
}

// leafBucket walks the nodes of a flat tree against the bucketed tree bt.
// leafLeft tells which side the flat tree is on.
func (w *walk) leafBucket(l, r *object.NodeRef, nodes []object.Node, bt *object.Tree, index BucketIndex, leafLeft bool) error {
	depth := len(index)
	if err := checkBuckets(bt, depth); err != nil {
		return err
	}

	indices := treeset.NewWithIntComparator()
	groups := make(map[int][]object.Node)
	for _, n := range nodes {
		idx := object.BucketOf(n.Name, depth)
		groups[idx] = append(groups[idx], n)
		indices.Add(idx)
	}

	for _, b := range bt.Buckets() {
		indices.Add(b.Index)
	}

	pairs := make([]*pair, 0, indices.Size())
	for _, v := range indices.Values() {
		idx := v.(int)
		p := &pair{index: index.Child(idx), nodes: groups[idx]}
		if b, ok := bt.Bucket(idx); ok {
			if leafLeft {
				p.right = b
			} else {
				p.left = b
			}
		}

		pairs = append(pairs, p)
	}

	leafLeaf := func(nodes, other []object.Node) error {
		if leafLeft {
			return w.leafLeaf(l, r, nodes, other)
		}

		return w.leafLeaf(l, r, other, nodes)
	}

	return w.visitPairs(pairs, func(p *pair) error {
		bucket, tree := p.left, p.leftTree
		if leafLeft {
			bucket, tree = p.right, p.rightTree
		}

		switch {
		case bucket == nil:
			return leafLeaf(p.nodes, nil)
		case len(p.nodes) == 0:
			if w.c.Bucket(l, r, p.index, p.left, p.right) {
				if err := w.contents(l, r, p.leftTree, p.rightTree, p.index); err != nil {
					return err
				}
			}

			w.c.EndBucket(l, r, p.index, p.left, p.right)
			return nil
		case !tree.IsBucketed():
			return leafLeaf(p.nodes, tree.Children())
		default:
			return w.leafBucket(l, r, p.nodes, tree, p.index, leafLeft)
		}
	})
}

// pair is a bucket index whose contents differ between both sides.
type pair struct {
	index       BucketIndex
	left, right *object.Bucket
	// leftTree and rightTree are the bucket trees, or the empty tree for a
	// missing bucket.
	leftTree, rightTree *object.Tree
	// nodes are the nodes of the flat side falling into index, if any.
	nodes   []object.Node
	pending int
}

// visitPairs fetches the bucket trees of every pair, one bulk request per
// side, and calls visit for each pair once its trees are available.
func (w *walk) visitPairs(pairs []*pair, visit func(*pair) error) error {
	var ids [2][]plumbing.ObjectID
	waiting := [2]map[plumbing.ObjectID][]*pair{{}, {}}
	for _, p := range pairs {
		p.leftTree, p.rightTree = object.EmptyTree, object.EmptyTree
		for side, b := range [2]*object.Bucket{p.left, p.right} {
			if b == nil {
				continue
			}

			if _, ok := waiting[side][b.ObjectID]; !ok {
				ids[side] = append(ids[side], b.ObjectID)
			}

			waiting[side][b.ObjectID] = append(waiting[side][b.ObjectID], p)
			p.pending++
		}
	}

	if !w.preserveOrder {
		for _, p := range pairs {
			if p.pending > 0 {
				continue
			}

			if w.stopped() {
				return nil
			}

			if err := visit(p); err != nil {
				return err
			}
		}
	}

	sources := [2]storer.ObjectGetter{w.leftSrc, w.rightSrc}
	for side, src := range sources {
		if len(ids[side]) == 0 {
			continue
		}

		err := w.fetch(src, ids[side], func(t *object.Tree) error {
			for _, p := range waiting[side][t.ID()] {
				if side == 0 {
					p.leftTree = t
				} else {
					p.rightTree = t
				}

				p.pending--
				if p.pending > 0 || w.preserveOrder {
					continue
				}

				if w.stopped() {
					return storer.ErrStop
				}

				if err := visit(p); err != nil {
					return err
				}
			}

			delete(waiting[side], t.ID())
			return nil
		})
		if err != nil {
			return err
		}

		if w.stopped() {
			return nil
		}

		for id := range waiting[side] {
			return plumbing.NewPermanentError(fmt.Errorf("%w: bucket tree: %w", plumbing.ErrCorruptTree, storer.NotFound(id)))
		}
	}

	if w.preserveOrder {
		for _, p := range pairs {
			if w.stopped() {
				return nil
			}

			if err := visit(p); err != nil {
				return err
			}
		}
	}

	return nil
}

func (w *walk) fetch(src storer.ObjectGetter, ids []plumbing.ObjectID, fn func(*object.Tree) error) error {
	iter, err := src.All(ids)
	if err != nil {
		return err
	}

	trace.Walk.Printf("difftree: fetching %d bucket trees", len(ids))
	return iter.ForEach(func(o object.RevObject) error {
		if w.stopped() {
			return storer.ErrStop
		}

		t, err := storer.AsTree(o, o.ID())
		if err != nil {
			return err
		}

		return fn(t)
	})
}

func checkBuckets(t *object.Tree, depth int) error {
	if depth >= object.MaxDepth {
		return plumbing.NewPermanentError(fmt.Errorf("%w: %s has buckets at depth %d", plumbing.ErrCorruptTree, t.ID(), depth))
	}

	limit := object.MaxBuckets(depth)
	for _, b := range t.Buckets() {
		if b.Index < 0 || b.Index >= limit {
			return plumbing.NewPermanentError(fmt.Errorf("%w: %s has bucket %d at depth %d", plumbing.ErrCorruptTree, t.ID(), b.Index, depth))
		}
	}

	return nil
}
