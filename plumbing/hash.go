package plumbing

import (
	"bytes"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/go-geogit/geogit/plumbing/hash"
)

// ObjectID is the content hash identifying a RevObject.
type ObjectID [hash.Size]byte

// ZeroID is the NULL object id. It never identifies a stored object.
var ZeroID ObjectID

// NewObjectID returns an ObjectID from its hexadecimal representation, or
// ZeroID if s is not a valid id.
func NewObjectID(s string) ObjectID {
	id, _ := FromHex(s)
	return id
}

// FromHex parses a hexadecimal string and returns an ObjectID and a boolean
// confirming whether the operation was successful.
func FromHex(s string) (ObjectID, bool) {
	var id ObjectID
	if len(s) != hash.HexSize {
		return id, false
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return id, false
	}

	copy(id[:], b)
	return id, true
}

// FromBytes creates an ObjectID from its raw bytes.
func FromBytes(b []byte) (ObjectID, bool) {
	var id ObjectID
	if len(b) != hash.Size {
		return id, false
	}

	copy(id[:], b)
	return id, true
}

// ComputeID returns the ObjectID of the given canonical encoding.
func ComputeID(content []byte) ObjectID {
	h := hash.New()
	h.Write(content)

	var id ObjectID
	copy(id[:], h.Sum(nil))
	return id
}

// IsZero reports whether id is the NULL id.
func (id ObjectID) IsZero() bool {
	return id == ZeroID
}

// Bytes returns a copy of the raw id bytes.
func (id ObjectID) Bytes() []byte {
	b := make([]byte, hash.Size)
	copy(b, id[:])
	return b
}

// Compare orders ids by unsigned lexicographic byte order.
func (id ObjectID) Compare(other ObjectID) int {
	return bytes.Compare(id[:], other[:])
}

// HasPrefix reports whether the hexadecimal form of id starts with prefix.
// It is used for partial id lookups.
func (id ObjectID) HasPrefix(prefix string) bool {
	return strings.HasPrefix(id.String(), strings.ToLower(prefix))
}

func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hexadecimal characters of id.
func (id ObjectID) Short() string {
	return id.String()[:8]
}

// IDSlice attaches the methods of sort.Interface to []ObjectID, sorting in
// increasing order.
type IDSlice []ObjectID

func (p IDSlice) Len() int           { return len(p) }
func (p IDSlice) Less(i, j int) bool { return p[i].Compare(p[j]) < 0 }
func (p IDSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// IDsSort sorts a slice of ObjectIDs in increasing order.
func IDsSort(a []ObjectID) {
	sort.Sort(IDSlice(a))
}
