// Package storer defines the interfaces the core uses to resolve and save
// objects. Implementations live in the storage packages.
package storer

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

var (
	// ErrStop is used to stop a ForEach function in an Iter.
	ErrStop = errors.New("stop iter")
)

// ObjectGetter resolves objects by id. Implementations must be safe for
// concurrent use.
type ObjectGetter interface {
	// Tree returns the tree with the given id, or an error wrapping
	// plumbing.ErrObjectNotFound.
	Tree(id plumbing.ObjectID) (*object.Tree, error)
	// Object returns the object with the given id, or an error wrapping
	// plumbing.ErrObjectNotFound.
	Object(id plumbing.ObjectID) (object.RevObject, error)
	// ObjectIfPresent returns the object with the given id, or nil if the
	// store does not hold it.
	ObjectIfPresent(id plumbing.ObjectID) (object.RevObject, error)
	// Exists reports whether the store holds an object with the given id.
	Exists(id plumbing.ObjectID) (bool, error)
	// All returns an iterator over the objects with the given ids that are
	// present. Objects may be returned in any order.
	All(ids []plumbing.ObjectID) (ObjectIter, error)
}

// ObjectPutter saves objects.
type ObjectPutter interface {
	// Put saves an object. Saving an object already present is a no-op.
	Put(o object.RevObject) error
	// PutAll saves every object of the given slice.
	PutAll(objs []object.RevObject) error
}

// ObjectStorer is a storer for objects.
type ObjectStorer interface {
	ObjectGetter
	ObjectPutter
}

// ObjectIter is a generic closable interface for iterating over objects.
type ObjectIter interface {
	Next() (object.RevObject, error)
	ForEach(func(object.RevObject) error) error
	Close()
}

// ResolveTree returns the tree with the given id. The empty tree and the
// NULL id resolve to object.EmptyTree without reaching the store.
func ResolveTree(g ObjectGetter, id plumbing.ObjectID) (*object.Tree, error) {
	if id.IsZero() || id == object.EmptyTreeID {
		return object.EmptyTree, nil
	}

	return g.Tree(id)
}

// AsTree checks o is a tree. Stores use it to implement Tree.
func AsTree(o object.RevObject, id plumbing.ObjectID) (*object.Tree, error) {
	t, ok := o.(*object.Tree)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not a tree", plumbing.ErrInvalidType, id, o.Type())
	}

	return t, nil
}

// NotFound returns an error wrapping plumbing.ErrObjectNotFound for id.
func NotFound(id plumbing.ObjectID) error {
	return fmt.Errorf("%w: %s", plumbing.ErrObjectNotFound, id)
}

// ObjectSliceIter implements ObjectIter. It iterates over a series of objects
// stored in a slice and yields each one in turn when Next() is called.
//
// The ObjectSliceIter must be closed with a call to Close() when it is no
// longer needed.
type ObjectSliceIter struct {
	series []object.RevObject
}

// NewObjectSliceIter returns an object iterator for the given slice of objects.
func NewObjectSliceIter(series []object.RevObject) *ObjectSliceIter {
	return &ObjectSliceIter{
		series: series,
	}
}

// Next returns the next object from the iterator. If the iterator has reached
// the end it will return io.EOF as an error. If the object is retrieved
// successfully error will be nil.
func (iter *ObjectSliceIter) Next() (object.RevObject, error) {
	if len(iter.series) == 0 {
		return nil, io.EOF
	}

	obj := iter.series[0]
	iter.series = iter.series[1:]

	return obj, nil
}

// ForEach call the cb function for each object contained on this iter until
// an error happens or the end of the iter is reached. If ErrStop is sent
// the iteration is stop but no error is returned. The iterator is closed.
func (iter *ObjectSliceIter) ForEach(cb func(object.RevObject) error) error {
	return ForEachIterator(iter, cb)
}

// Close releases any resources used by the iterator.
func (iter *ObjectSliceIter) Close() {
	iter.series = []object.RevObject{}
}

// ObjectLookupIter implements ObjectIter. It iterates over a series of ids
// and resolves each one through an ObjectGetter, skipping the ones that are
// not present.
type ObjectLookupIter struct {
	getter ObjectGetter
	series []plumbing.ObjectID
	pos    int
}

// NewObjectLookupIter returns an object iterator that resolves each id of
// series lazily.
func NewObjectLookupIter(getter ObjectGetter, series []plumbing.ObjectID) *ObjectLookupIter {
	return &ObjectLookupIter{getter: getter, series: series}
}

// Next returns the next present object, or io.EOF once every id has been
// looked up.
func (iter *ObjectLookupIter) Next() (object.RevObject, error) {
	for iter.pos < len(iter.series) {
		id := iter.series[iter.pos]
		iter.pos++

		obj, err := iter.getter.ObjectIfPresent(id)
		if err != nil {
			return nil, err
		}

		if obj != nil {
			return obj, nil
		}
	}

	return nil, io.EOF
}

// ForEach call the cb function for each object contained on this iter until
// an error happens or the end of the iter is reached. If ErrStop is sent
// the iteration is stop but no error is returned. The iterator is closed.
func (iter *ObjectLookupIter) ForEach(cb func(object.RevObject) error) error {
	return ForEachIterator(iter, cb)
}

// Close releases any resources used by the iterator.
func (iter *ObjectLookupIter) Close() {
	iter.pos = len(iter.series)
}

type bareIterator interface {
	Next() (object.RevObject, error)
	Close()
}

// ForEachIterator is a helper function to build iterators without need to
// rewrite the same ForEach function each time.
func ForEachIterator(iter bareIterator, cb func(object.RevObject) error) error {
	defer iter.Close()
	for {
		obj, err := iter.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}

			return err
		}

		if err := cb(obj); err != nil {
			if err == ErrStop {
				return nil
			}

			return err
		}
	}
}
