// Package filesystem is a storage backend based on a billy filesystem.
// Every object is a loose object file, zlib compressed, under
// objects/<first two hex digits>/<remaining hex digits>.
package filesystem

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/cache"
	"github.com/go-geogit/geogit/plumbing/format/objfile"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/utils/trace"
)

const (
	objectsPath = "objects"
	tmpPrefix   = "tmp_obj_"
)

// Options holds configuration for the storage.
type Options struct {
	// CacheSize is the number of decoded objects kept in memory. Zero
	// means cache.DefaultMaxEntries, a negative value disables the cache.
	CacheSize int
}

// Storage is a storer.ObjectStorer over a billy filesystem. Writes go to a
// temporary file renamed into place, so readers never see a partial
// object.
type Storage struct {
	fs    billy.Filesystem
	cache cache.Object
}

var _ storer.ObjectStorer = (*Storage)(nil)

// NewStorage returns a Storage rooted at the given filesystem.
func NewStorage(fs billy.Filesystem, opts Options) (*Storage, error) {
	if err := fs.MkdirAll(objectsPath, 0o755); err != nil {
		return nil, err
	}

	s := &Storage{fs: fs}
	switch {
	case opts.CacheSize == 0:
		s.cache = cache.NewObjectLRUDefault()
	case opts.CacheSize > 0:
		s.cache = cache.NewObjectLRU(opts.CacheSize)
	}

	return s, nil
}

func (s *Storage) objectPath(id plumbing.ObjectID) string {
	h := id.String()
	return s.fs.Join(objectsPath, h[0:2], h[2:])
}

// Put stores an object.
func (s *Storage) Put(o object.RevObject) error {
	id := o.ID()
	path := s.objectPath(id)
	if _, err := s.fs.Stat(path); err == nil {
		return nil
	}

	dir := s.fs.Join(objectsPath, id.String()[0:2])
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := s.fs.TempFile(dir, tmpPrefix)
	if err != nil {
		return err
	}

	if err := objfile.WriteObject(f, o); err != nil {
		f.Close()
		_ = s.fs.Remove(f.Name())
		return err
	}

	if err := f.Close(); err != nil {
		_ = s.fs.Remove(f.Name())
		return err
	}

	if err := s.fs.Rename(f.Name(), path); err != nil {
		_ = s.fs.Remove(f.Name())
		return err
	}

	trace.Storage.Printf("filesystem: put %s %s", o.Type(), id)
	return nil
}

// PutAll stores every object. Objects written before a failure are kept.
func (s *Storage) PutAll(objs []object.RevObject) error {
	for _, o := range objs {
		if err := s.Put(o); err != nil {
			return err
		}
	}

	return nil
}

// Object returns the object with the given id.
func (s *Storage) Object(id plumbing.ObjectID) (object.RevObject, error) {
	o, err := s.ObjectIfPresent(id)
	if err != nil {
		return nil, err
	}

	if o == nil {
		return nil, storer.NotFound(id)
	}

	return o, nil
}

// ObjectIfPresent returns the object with the given id, or nil.
func (s *Storage) ObjectIfPresent(id plumbing.ObjectID) (object.RevObject, error) {
	if s.cache != nil {
		if o, ok := s.cache.Get(id); ok {
			return o, nil
		}
	}

	f, err := s.fs.Open(s.objectPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}
	defer f.Close()

	o, err := objfile.ReadObject(f)
	if err != nil {
		return nil, fmt.Errorf("filesystem: object %s: %w", id, err)
	}

	if o.ID() != id {
		return nil, fmt.Errorf("filesystem: %w: %s hashes to %s", plumbing.ErrCorruptObject, id, o.ID())
	}

	if s.cache != nil {
		s.cache.Put(o)
	}

	return o, nil
}

// Tree returns the tree with the given id.
func (s *Storage) Tree(id plumbing.ObjectID) (*object.Tree, error) {
	if id == object.EmptyTreeID {
		return object.EmptyTree, nil
	}

	o, err := s.Object(id)
	if err != nil {
		return nil, err
	}

	return storer.AsTree(o, id)
}

// Exists reports whether the object is stored.
func (s *Storage) Exists(id plumbing.ObjectID) (bool, error) {
	if s.cache != nil {
		if _, ok := s.cache.Get(id); ok {
			return true, nil
		}
	}

	_, err := s.fs.Stat(s.objectPath(id))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, err
}

// All returns an iterator resolving the given ids lazily in id order,
// which groups reads by directory.
func (s *Storage) All(ids []plumbing.ObjectID) (storer.ObjectIter, error) {
	sorted := make([]plumbing.ObjectID, len(ids))
	copy(sorted, ids)
	plumbing.IDsSort(sorted)

	return storer.NewObjectLookupIter(s, sorted), nil
}

// IDs returns the id of every stored object, in increasing order.
func (s *Storage) IDs() ([]plumbing.ObjectID, error) {
	return s.LookupPrefix("")
}

// LookupPrefix returns the ids of every object whose hexadecimal id starts
// with prefix, in increasing order.
func (s *Storage) LookupPrefix(prefix string) ([]plumbing.ObjectID, error) {
	prefix = strings.ToLower(prefix)

	dirs, err := s.fs.ReadDir(objectsPath)
	if err != nil {
		return nil, err
	}

	var out []plumbing.ObjectID
	for _, d := range dirs {
		name := d.Name()
		if !d.IsDir() || len(name) != 2 {
			continue
		}

		if len(prefix) >= 2 && name != prefix[:2] || len(prefix) == 1 && name[0] != prefix[0] {
			continue
		}

		files, err := s.fs.ReadDir(s.fs.Join(objectsPath, name))
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			if strings.HasPrefix(f.Name(), tmpPrefix) {
				continue
			}

			id, ok := plumbing.FromHex(name + f.Name())
			if ok && id.HasPrefix(prefix) {
				out = append(out, id)
			}
		}
	}

	sort.Sort(plumbing.IDSlice(out))
	return out, nil
}
