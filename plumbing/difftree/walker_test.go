package difftree

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

type WalkerSuite struct {
	treeSuite
}

func TestWalkerSuite(t *testing.T) {
	suite.Run(t, new(WalkerSuite))
}

func (s *WalkerSuite) TestSameTree() {
	t := s.tree(span(0, 600, "v1")...)
	store := &countingStore{ObjectStorer: s.store}
	r := &recorder{}

	s.NoError(NewWalker(t, t, store, store).Walk(s.ctx, r))
	s.Empty(r.events)
	s.Empty(r.entries)
	s.Equal(int64(0), store.reads.Load())
}

func (s *WalkerSuite) TestOnlyChangedBucketIsRead() {
	left := s.tree(span(0, 600, "v1")...)
	right := s.tree(append(span(0, 600, "v1")[1:], numbered(0, "v2"))...)
	s.Require().True(left.IsBucketed())

	store := &countingStore{ObjectStorer: s.store}
	r := &recorder{}
	s.NoError(NewWalker(left, right, store, store).Walk(s.ctx, r))

	s.Equal(map[string]object.ChangeType{"feature.0": object.Modified}, r.changes())
	s.Equal(1, r.count("bucket "))
	s.Equal(int64(2), store.reads.Load())
}

func (s *WalkerSuite) TestFlatChanges() {
	left := s.tree(featureAt("a", 0, "v1"), featureAt("b", 1, "v1"), featureAt("c", 2, "v1"))
	right := s.tree(featureAt("a", 0, "v1"), featureAt("b", 1, "v2"), featureAt("d", 3, "v1"))

	r := s.record(left, right)
	s.Equal(map[string]object.ChangeType{
		"b": object.Modified,
		"c": object.Removed,
		"d": object.Added,
	}, r.changes())
	s.Equal([]string{"tree ", "endtree "}, r.events)

	back := s.record(right, left)
	s.Equal(map[string]object.ChangeType{
		"b": object.Modified,
		"c": object.Added,
		"d": object.Removed,
	}, back.changes())
}

func (s *WalkerSuite) TestMetadataChange() {
	a := featureAt("a", 0, "v1")
	b := a
	b.MetadataID = plumbing.ComputeID([]byte("type"))

	r := s.record(s.tree(a), s.tree(b))
	s.Equal(map[string]object.ChangeType{"a": object.Modified}, r.changes())
}

func (s *WalkerSuite) TestBucketedChanges() {
	left := s.tree(span(0, 600, "v1")...)

	nodes := span(0, 601, "v1")
	nodes[7] = numbered(7, "v2")
	nodes = append(nodes[:8], nodes[9:]...)
	right := s.tree(nodes...)
	s.Require().True(right.IsBucketed())

	expected := map[string]object.ChangeType{
		"feature.7":   object.Modified,
		"feature.8":   object.Removed,
		"feature.600": object.Added,
	}

	s.Equal(expected, s.record(left, right).changes())

	// the same changes against a flat tree
	flat := s.tree(span(0, 100, "v1")...)
	s.Require().False(flat.IsBucketed())

	r := s.record(flat, right)
	s.Len(r.entries, 503)
	changes := r.changes()
	s.Equal(object.Modified, changes["feature.7"])
	s.Equal(object.Removed, changes["feature.8"])
	for i := 100; i <= 600; i++ {
		s.Equal(object.Added, changes[numbered(i, "").Name])
	}

	back := s.record(right, flat).changes()
	s.Len(back, 503)
	s.Equal(object.Added, back["feature.8"])
	s.Equal(object.Removed, back["feature.600"])
}

func (s *WalkerSuite) TestNestedBuckets() {
	if testing.Short() {
		s.T().Skip("builds large trees")
	}

	left := s.tree(span(0, 20000, "v1")...)
	nodes := span(0, 20000, "v1")
	nodes[12345] = numbered(12345, "v2")
	right := s.tree(nodes[:19990]...)

	r := s.record(left, right)
	s.Len(r.entries, 11)
	s.Equal(object.Modified, r.changes()["feature.12345"])

	// removing every feature walks down to each bucket
	r = s.record(left, nil)
	s.Len(r.entries, 20000)
}

func (s *WalkerSuite) TestPreserveIterationOrder() {
	right := s.tree(span(0, 600, "v1")...)

	w := NewWalker(nil, right, s.store, s.store)
	w.SetPreserveIterationOrder(true)
	r := &recorder{}
	s.NoError(w.Walk(s.ctx, r))

	s.Len(r.entries, 600)
	s.True(sort.SliceIsSorted(r.entries, func(i, j int) bool {
		return object.CompareNames(r.entries[i].New.Name(), r.entries[j].New.Name()) < 0
	}))

	var indices []int
	for _, e := range r.events {
		var idx int
		if _, err := fmt.Sscanf(e, "bucket [%d]", &idx); err == nil {
			indices = append(indices, idx)
		}
	}
	s.NotEmpty(indices)
	s.True(sort.IntsAreSorted(indices))
}

func (s *WalkerSuite) TestNestedTrees() {
	roads := s.tree(featureAt("r1", 0, "v1"), featureAt("r2", 1, "v1"))
	rivers := s.tree(featureAt("v1", 2, "v1"))
	left := s.tree(s.layer("roads", roads), s.layer("rivers", rivers))

	changed := s.tree(featureAt("r1", 0, "v1"), featureAt("r2", 1, "v2"))
	right := s.tree(s.layer("roads", changed), s.layer("rivers", rivers))

	r := s.record(left, right)
	s.Equal([]string{"tree ", "tree roads", "endtree roads", "endtree "}, r.events)
	s.Require().Len(r.entries, 1)
	s.Equal("roads/r2", r.entries[0].Path())
	s.Equal(object.Modified, r.entries[0].ChangeType())

	// a pruned tree is closed but not walked
	pruned := &recorder{prune: map[string]bool{"roads": true}}
	s.NoError(s.walk(left, right, pruned))
	s.Equal(r.events, pruned.events)
	s.Empty(pruned.entries)

	// a tree added as a whole
	lakes := s.tree(featureAt("l1", 3, "v1"))
	more := s.tree(s.layer("roads", roads), s.layer("rivers", rivers), s.layer("lakes", lakes))
	r = s.record(left, more)
	s.Equal(map[string]object.ChangeType{"lakes/l1": object.Added}, r.changes())
	s.Equal(1, r.count("tree lakes"))
}

func (s *WalkerSuite) TestKindChange() {
	inner := s.tree(featureAt("y", 0, "v1"))
	left := s.tree(featureAt("x", 0, "v1"))
	right := s.tree(s.layer("x", inner))

	r := s.record(left, right)
	s.Require().Len(r.entries, 2)
	s.Equal("x", r.entries[0].Path())
	s.Equal(object.Removed, r.entries[0].ChangeType())
	s.Equal("x/y", r.entries[1].Path())
	s.Equal(object.Added, r.entries[1].ChangeType())
	s.Equal([]string{"tree ", "tree x", "endtree x", "endtree "}, r.events)
}

func (s *WalkerSuite) TestDefaultMetadataID() {
	md := plumbing.ComputeID([]byte("default"))
	w := NewWalker(nil, s.tree(featureAt("a", 0, "v1")), s.store, s.store)
	w.SetDefaultMetadataID(md)

	r := &recorder{}
	s.NoError(w.Walk(s.ctx, r))
	s.Require().Len(r.entries, 1)
	s.Equal(md, r.entries[0].New.MetadataID())
}

type aborting struct {
	recorder
	w *Walker
}

func (a *aborting) Feature(left, right *object.NodeRef) {
	a.recorder.Feature(left, right)
	a.w.Abort()
}

func (s *WalkerSuite) TestAbort() {
	w := NewWalker(nil, s.tree(span(0, 600, "v1")...), s.store, s.store)
	c := &aborting{w: w}

	s.NoError(w.Walk(s.ctx, c))
	s.Len(c.entries, 1)
	s.True(w.Aborted())
	w.AwaitTermination()

	// aborting again is harmless
	w.Abort()
	s.NoError(w.Walk(s.ctx, c))
	s.Len(c.entries, 1)
}

func (s *WalkerSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	r := &recorder{}
	err := NewWalker(nil, s.tree(featureAt("a", 0, "v1")), s.store, s.store).Walk(ctx, r)
	s.ErrorIs(err, context.Canceled)
	s.Empty(r.events)
}

func (s *WalkerSuite) TestMissingTree() {
	missing := plumbing.ComputeID([]byte("missing"))
	right, err := object.NewLeafTree(nil, []object.Node{
		object.NewTreeNode("layer", missing, plumbing.ZeroID, nil),
	}, 1, 1)
	s.Require().NoError(err)

	err = s.walk(nil, right, &recorder{})
	s.ErrorIs(err, plumbing.ErrObjectNotFound)
}

func (s *WalkerSuite) TestMissingBucket() {
	missing := plumbing.ComputeID([]byte("missing"))
	right, err := object.NewBucketTree([]object.Bucket{
		{Index: object.BucketOf("a", 0), ObjectID: missing},
	}, 600, 0)
	s.Require().NoError(err)

	err = s.walk(nil, right, &recorder{})
	s.ErrorIs(err, plumbing.ErrCorruptTree)
	s.ErrorIs(err, plumbing.ErrObjectNotFound)
	s.True(plumbing.IsPermanent(err))
}

func (s *WalkerSuite) TestPrunedBucketsAreClosed() {
	flat := s.tree(span(0, 100, "v1")...)
	left := s.tree(span(0, 600, "v1")...)
	right := s.tree(span(0, 600, "v2")...)

	cases := [][2]*object.Tree{{left, right}, {flat, right}, {right, flat}}
	for _, c := range cases {
		r := &recorder{pruneBuckets: true}
		s.NoError(NewWalker(c[0], c[1], s.store, s.store).Walk(s.ctx, r))

		s.Empty(r.entries)
		s.NotZero(r.count("bucket "))
		s.Equal(r.count("bucket "), r.count("endbucket "))
	}
}

func (s *WalkerSuite) TestBucketIndex() {
	var root BucketIndex
	a := root.Child(3)
	b := a.Child(5)

	s.Equal(0, a.Depth())
	s.Equal(1, b.Depth())
	s.Equal(5, b.Last())
	s.Equal(-1, root.Last())
	s.Equal(BucketIndex{3}, a)
	s.Equal("[3,5]", b.String())
	s.True(a.IsPrefixOf([]int{3, 5, 1}))
	s.False(b.IsPrefixOf([]int{3, 4}))
}
