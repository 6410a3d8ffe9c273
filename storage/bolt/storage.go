// Package bolt is a storage backend keeping objects in a single bbolt
// database file. Objects are stored in their codec encoding under their
// raw id, so a cursor walks them in id order.
package bolt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/cache"
	"github.com/go-geogit/geogit/plumbing/format/codec"
	"github.com/go-geogit/geogit/plumbing/object"
	"github.com/go-geogit/geogit/plumbing/storer"
	"github.com/go-geogit/geogit/utils/trace"
)

var objectsBucket = []byte("objects")

// Options configures a Storage.
type Options struct {
	// CacheSize is the number of decoded objects kept in memory. Zero
	// means cache.DefaultMaxEntries, a negative value disables the cache.
	CacheSize int
	// Timeout is how long Open waits for the file lock.
	Timeout time.Duration
	// NoSync skips fsync after each commit. Only meant for tests.
	NoSync bool
}

// Storage is a storer.ObjectStorer backed by bbolt. It is safe for
// concurrent use.
type Storage struct {
	db    *bbolt.DB
	cache cache.Object
}

var _ storer.ObjectStorer = (*Storage)(nil)

// Open opens, creating it if needed, the database at path.
func Open(path string, opts Options) (*Storage, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opts.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = 10 * time.Second
	}

	if opts.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}

	db, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(objectsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: %w", err)
	}

	s := &Storage{db: db}
	switch {
	case opts.CacheSize == 0:
		s.cache = cache.NewObjectLRUDefault()
	case opts.CacheSize > 0:
		s.cache = cache.NewObjectLRU(opts.CacheSize)
	}

	return s, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Put stores an object.
func (s *Storage) Put(o object.RevObject) error {
	return s.PutAll([]object.RevObject{o})
}

// PutAll stores every object in a single transaction.
func (s *Storage) PutAll(objs []object.RevObject) error {
	if len(objs) == 0 {
		return nil
	}

	encoded := make([][]byte, len(objs))
	for i, o := range objs {
		b, err := codec.Marshal(o)
		if err != nil {
			return err
		}
		encoded[i] = b
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(objectsBucket)
		for i, o := range objs {
			id := o.ID()
			if b.Get(id[:]) != nil {
				continue
			}

			if err := b.Put(id[:], encoded[i]); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt: %w", err)
	}

	trace.Storage.Printf("bolt: put %d objects", len(objs))
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

	var o object.RevObject
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get(id[:])
		if v == nil {
			return nil
		}

		var err error
		o, err = decode(id, v)
		return err
	})
	if err != nil || o == nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(o)
	}

	return o, nil
}

// decode must be called inside the transaction v belongs to.
func decode(id plumbing.ObjectID, v []byte) (object.RevObject, error) {
	o, err := codec.Unmarshal(v)
	if err != nil {
		return nil, fmt.Errorf("bolt: object %s: %w", id, err)
	}

	if o.ID() != id {
		return nil, fmt.Errorf("bolt: %w: %s hashes to %s", plumbing.ErrCorruptObject, id, o.ID())
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

	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(objectsBucket).Get(id[:]) != nil
		return nil
	})

	return found, err
}

// All returns the present objects with the given ids. They are read in a
// single transaction, in id order.
func (s *Storage) All(ids []plumbing.ObjectID) (storer.ObjectIter, error) {
	sorted := make([]plumbing.ObjectID, len(ids))
	copy(sorted, ids)
	plumbing.IDsSort(sorted)

	series := make([]object.RevObject, 0, len(sorted))
	var missing []plumbing.ObjectID
	for _, id := range sorted {
		if s.cache == nil {
			missing = append(missing, id)
			continue
		}

		if o, ok := s.cache.Get(id); ok {
			series = append(series, o)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		err := s.db.View(func(tx *bbolt.Tx) error {
			b := tx.Bucket(objectsBucket)
			for _, id := range missing {
				v := b.Get(id[:])
				if v == nil {
					continue
				}

				o, err := decode(id, v)
				if err != nil {
					return err
				}

				series = append(series, o)
			}

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		for _, o := range series {
			s.cache.Put(o)
		}
	}

	return storer.NewObjectSliceIter(series), nil
}

// Iter returns an iterator over every object of the given type, sorted by
// id.
func (s *Storage) Iter(t plumbing.ObjectType) (storer.ObjectIter, error) {
	if !t.Valid() {
		return nil, plumbing.ErrInvalidType
	}

	// the encoding of an object starts with its type code as a fixint
	code := byte(t.Code())

	var series []object.RevObject
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(objectsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) == 0 || v[0] != code {
				continue
			}

			id, _ := plumbing.FromBytes(k)
			o, err := decode(id, v)
			if err != nil {
				return err
			}

			series = append(series, o)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return storer.NewObjectSliceIter(series), nil
}

// LookupPrefix returns the ids of every object whose hexadecimal id starts
// with prefix, in increasing order.
func (s *Storage) LookupPrefix(prefix string) ([]plumbing.ObjectID, error) {
	// seek to the longest whole byte prefix, then filter on the full one
	seek, err := hex.DecodeString(prefix[:len(prefix)&^1])
	if err != nil {
		return nil, fmt.Errorf("bolt: invalid prefix %q: %w", prefix, err)
	}

	var out []plumbing.ObjectID
	err = s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(objectsBucket).Cursor()
		for k, _ := c.Seek(seek); k != nil && bytes.HasPrefix(k, seek); k, _ = c.Next() {
			id, ok := plumbing.FromBytes(k)
			if ok && id.HasPrefix(prefix) {
				out = append(out, id)
			}
		}

		return nil
	})

	return out, err
}

// Len returns the number of stored objects.
func (s *Storage) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(objectsBucket).Stats().KeyN
		return nil
	})

	return n, err
}
