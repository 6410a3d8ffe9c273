// Package hash provides the hash function used to identify every object in
// a repository.
package hash

import (
	"crypto"
	"hash"

	"github.com/pjbgf/sha1cd"
)

const (
	// Size is the size in bytes of an object id.
	Size = 20
	// HexSize is the size of the hexadecimal form of an object id.
	HexSize = Size * 2
	// CryptoType is the hash algorithm object ids are computed with.
	CryptoType = crypto.SHA1
)

func init() {
	crypto.RegisterHash(CryptoType, sha1cd.New)
}

// New returns a new SHA-1 hash.Hash with collision detection enabled.
func New() hash.Hash {
	return sha1cd.New()
}
