// Package cache provides bounded, concurrency safe caches for objects and
// derived values.
package cache

import (
	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

// DefaultMaxEntries is the number of objects kept by default.
const DefaultMaxEntries = 4096

// Object is an interface to an object cache.
type Object interface {
	// Put puts the given object into the cache. Whether this object will
	// actually be put into the cache or not is implementation specific.
	Put(o object.RevObject)
	// Get gets an object from the cache given its id. The second return value
	// is true if the object was returned, and false otherwise.
	Get(id plumbing.ObjectID) (object.RevObject, bool)
	// Clear clears every object from the cache.
	Clear()
}
