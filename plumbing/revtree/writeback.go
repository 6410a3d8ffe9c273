package revtree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
)

// Find returns the direct child of t with the given name, following the
// buckets the name falls into.
func Find(g storer.ObjectGetter, t *object.Tree, name string) (object.Node, bool, error) {
	return find(func(id plumbing.ObjectID) (*object.Tree, error) {
		return storer.ResolveTree(g, id)
	}, t, name)
}

func find(load func(plumbing.ObjectID) (*object.Tree, error), t *object.Tree, name string) (object.Node, bool, error) {
	for depth := 0; t.IsBucketed(); depth++ {
		if err := checkBuckets(t, depth); err != nil {
			return object.Node{}, false, err
		}

		index := object.BucketOf(name, depth)
		bk, ok := t.Bucket(index)
		if !ok {
			return object.Node{}, false, nil
		}

		var err error
		if t, err = load(bk.ObjectID); err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				err = plumbing.NewPermanentError(fmt.Errorf("%w: bucket %d: %w", plumbing.ErrCorruptTree, index, err))
			}
			return object.Node{}, false, err
		}
	}

	for _, nodes := range [][]object.Node{t.Trees(), t.Features()} {
		i := sort.Search(len(nodes), func(i int) bool {
			return object.CompareNames(nodes[i].Name, name) >= 0
		})

		if i < len(nodes) && nodes[i].Name == name {
			return nodes[i], true, nil
		}
	}

	return object.Node{}, false, nil
}

// WriteBack replaces the tree at path, under root, with subtree and
// returns the new root. Only the ancestors of path are rebuilt, with one
// change per level, so every sibling node is kept as is. An empty subtree
// removes the node at path. Missing ancestors are created.
//
// The tree node at path gets metadataID, ancestors keep their node.
func WriteBack(ctx context.Context, store storer.ObjectStorer, root *object.Tree, path string, subtree *object.Tree, metadataID plumbing.ObjectID) (*object.Tree, error) {
	names := object.SplitPath(path)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: cannot write back the root", ErrInvalidNode)
	}

	if !subtree.IsEmpty() {
		if err := store.Put(subtree); err != nil {
			return nil, err
		}
	}

	// ancestors[i] is the tree holding names[i], nodes[i] the node of
	// names[i] in it for every ancestor below the root
	ancestors := []*object.Tree{root}
	nodes := make([]object.Node, len(names)-1)
	cur := root
	for i, name := range names[:len(names)-1] {
		n, ok, err := Find(store, cur, name)
		if err != nil {
			return nil, err
		}

		switch {
		case !ok:
			n = object.NewTreeNode(name, object.EmptyTreeID, plumbing.ZeroID, nil)
			cur = object.EmptyTree
		case !n.IsTree():
			return nil, fmt.Errorf("%w: %s is a %s", plumbing.ErrInvalidType, strings.Join(names[:i+1], object.PathSeparator), n.Type)
		default:
			if cur, err = storer.ResolveTree(store, n.ObjectID); err != nil {
				return nil, err
			}
		}

		nodes[i] = n
		ancestors = append(ancestors, cur)
	}

	child := subtree
	node := object.NewTreeNode(names[len(names)-1], subtree.ID(), metadataID, subtree.Bounds())
	for i := len(names) - 1; i >= 0; i-- {
		b := NewBuilderFrom(store, ancestors[i])
		if i == len(names)-1 && child.IsEmpty() {
			if _, err := b.Remove(node.Name); err != nil {
				return nil, err
			}
		} else if err := b.Put(node); err != nil {
			return nil, err
		}

		parent, err := b.Build(ctx)
		if err != nil {
			return nil, err
		}

		child = parent
		if i > 0 {
			node = nodes[i-1].Update(parent.ID(), parent.Bounds())
		}
	}

	return child, nil
}
