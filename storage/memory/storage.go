// Package memory is a storage backend based on memory.
package memory

import (
	"sort"
	"sync"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/utils/trace"
)

// Storage is an in memory object store, safe for concurrent use. Objects
// are immutable, so they are kept and returned as is.
type Storage struct {
	ObjectStorage
}

// NewStorage returns a new empty Storage.
func NewStorage() *Storage {
	return &Storage{
		ObjectStorage: ObjectStorage{
			Objects:      make(map[plumbing.ObjectID]object.RevObject),
			Commits:      make(map[plumbing.ObjectID]object.RevObject),
			Trees:        make(map[plumbing.ObjectID]object.RevObject),
			Features:     make(map[plumbing.ObjectID]object.RevObject),
			FeatureTypes: make(map[plumbing.ObjectID]object.RevObject),
			Tags:         make(map[plumbing.ObjectID]object.RevObject),
		},
	}
}

// ObjectStorage implements storer.ObjectStorer over maps indexed by type.
type ObjectStorage struct {
	mut          sync.RWMutex
	Objects      map[plumbing.ObjectID]object.RevObject
	Commits      map[plumbing.ObjectID]object.RevObject
	Trees        map[plumbing.ObjectID]object.RevObject
	Features     map[plumbing.ObjectID]object.RevObject
	FeatureTypes map[plumbing.ObjectID]object.RevObject
	Tags         map[plumbing.ObjectID]object.RevObject
}

var _ storer.ObjectStorer = (*Storage)(nil)

func (o *ObjectStorage) byType(t plumbing.ObjectType) map[plumbing.ObjectID]object.RevObject {
	switch t {
	case plumbing.CommitObject:
		return o.Commits
	case plumbing.TreeObject:
		return o.Trees
	case plumbing.FeatureObject:
		return o.Features
	case plumbing.FeatureTypeObject:
		return o.FeatureTypes
	case plumbing.TagObject:
		return o.Tags
	default:
		return nil
	}
}

// Put stores an object.
func (o *ObjectStorage) Put(obj object.RevObject) error {
	o.mut.Lock()
	defer o.mut.Unlock()

	return o.put(obj)
}

func (o *ObjectStorage) put(obj object.RevObject) error {
	m := o.byType(obj.Type())
	if m == nil {
		return plumbing.ErrInvalidType
	}

	id := obj.ID()
	if _, ok := o.Objects[id]; ok {
		return nil
	}

	o.Objects[id] = obj
	m[id] = obj
	trace.Storage.Printf("memory: put %s %s", obj.Type(), id)
	return nil
}

// PutAll stores every object atomically: readers see either none or all
// of them.
func (o *ObjectStorage) PutAll(objs []object.RevObject) error {
	o.mut.Lock()
	defer o.mut.Unlock()

	for _, obj := range objs {
		if err := o.put(obj); err != nil {
			return err
		}
	}

	return nil
}

// Object returns the object with the given id.
func (o *ObjectStorage) Object(id plumbing.ObjectID) (object.RevObject, error) {
	obj, err := o.ObjectIfPresent(id)
	if err != nil {
		return nil, err
	}

	if obj == nil {
		return nil, storer.NotFound(id)
	}

	return obj, nil
}

// ObjectIfPresent returns the object with the given id, or nil.
func (o *ObjectStorage) ObjectIfPresent(id plumbing.ObjectID) (object.RevObject, error) {
	o.mut.RLock()
	defer o.mut.RUnlock()

	obj, ok := o.Objects[id]
	if !ok {
		return nil, nil
	}

	return obj, nil
}

// Tree returns the tree with the given id.
func (o *ObjectStorage) Tree(id plumbing.ObjectID) (*object.Tree, error) {
	if id == object.EmptyTreeID {
		return object.EmptyTree, nil
	}

	obj, err := o.Object(id)
	if err != nil {
		return nil, err
	}

	return storer.AsTree(obj, id)
}

// Exists reports whether the object is stored.
func (o *ObjectStorage) Exists(id plumbing.ObjectID) (bool, error) {
	o.mut.RLock()
	defer o.mut.RUnlock()

	_, ok := o.Objects[id]
	return ok, nil
}

// All returns the present objects with the given ids, in the order of ids.
func (o *ObjectStorage) All(ids []plumbing.ObjectID) (storer.ObjectIter, error) {
	o.mut.RLock()
	defer o.mut.RUnlock()

	series := make([]object.RevObject, 0, len(ids))
	for _, id := range ids {
		if obj, ok := o.Objects[id]; ok {
			series = append(series, obj)
		}
	}

	return storer.NewObjectSliceIter(series), nil
}

// Iter returns an iterator over every object of the given type, sorted by
// id.
func (o *ObjectStorage) Iter(t plumbing.ObjectType) (storer.ObjectIter, error) {
	o.mut.RLock()
	defer o.mut.RUnlock()

	m := o.byType(t)
	if m == nil {
		return nil, plumbing.ErrInvalidType
	}

	ids := make([]plumbing.ObjectID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	plumbing.IDsSort(ids)

	series := make([]object.RevObject, 0, len(ids))
	for _, id := range ids {
		series = append(series, m[id])
	}

	return storer.NewObjectSliceIter(series), nil
}

// LookupPrefix returns the ids of every object whose hexadecimal id starts
// with prefix, in increasing order.
func (o *ObjectStorage) LookupPrefix(prefix string) ([]plumbing.ObjectID, error) {
	o.mut.RLock()
	defer o.mut.RUnlock()

	var out []plumbing.ObjectID
	for id := range o.Objects {
		if id.HasPrefix(prefix) {
			out = append(out, id)
		}
	}

	sort.Sort(plumbing.IDSlice(out))
	return out, nil
}

// Len returns the number of stored objects.
func (o *ObjectStorage) Len() int {
	o.mut.RLock()
	defer o.mut.RUnlock()

	return len(o.Objects)
}
