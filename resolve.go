package geogit

import (
	"context"
	"fmt"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
)

// TreeResolver resolves a ref spec, such as a branch name or a commit id,
// to the id of a tree.
type TreeResolver func(ctx context.Context, refSpec string) (plumbing.ObjectID, error)

// ResolveTree resolves refSpec with resolver and reads the tree from
// source. The NULL id and the empty tree id resolve to object.EmptyTree
// without calling resolver.
func ResolveTree(ctx context.Context, resolver TreeResolver, source storer.ObjectGetter, refSpec string) (*object.Tree, error) {
	if refSpec == plumbing.ZeroID.String() || refSpec == object.EmptyTreeID.String() {
		return object.EmptyTree, nil
	}

	if resolver == nil {
		return nil, ErrMissingResolver
	}

	id, err := resolver(ctx, refSpec)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", refSpec, err)
	}

	t, err := storer.ResolveTree(source, id)
	if err != nil {
		return nil, fmt.Errorf("%q did not resolve to a tree: %w", refSpec, err)
	}

	return t, nil
}

func (s TreeSpec) resolve(ctx context.Context, resolver TreeResolver, source storer.ObjectGetter) (*object.Tree, error) {
	switch {
	case s.Tree != nil:
		return s.Tree, nil
	case !s.ID.IsZero():
		return storer.ResolveTree(source, s.ID)
	case s.RefSpec != "":
		return ResolveTree(ctx, resolver, source, s.RefSpec)
	default:
		return object.EmptyTree, nil
	}
}

// trees resolves both sides of o, which must be validated.
func (o *DiffTreeOptions) trees(ctx context.Context) (left, right *object.Tree, err error) {
	if left, err = o.Old.resolve(ctx, o.Resolver, o.LeftSource); err != nil {
		return nil, nil, err
	}

	if right, err = o.New.resolve(ctx, o.Resolver, o.RightSource); err != nil {
		return nil, nil, err
	}

	return left, right, nil
}
