package object

import (
	"unicode/utf16"

	"github.com/go-geogit/geogit/plumbing/format/funnel"
)

const (
	// MaxDepth is the number of bucket levels a name hash can address.
	// Trees at this depth are never split further.
	MaxDepth = 8

	fnvOffset uint64 = 0xcbf29ce484222325
	fnvPrime  uint64 = 0x100000001b3
)

// MaxBuckets returns the number of buckets a tree at the given bucket depth
// is split into.
func MaxBuckets(depth int) int {
	switch {
	case depth < 3:
		return 32
	case depth < 5:
		return 8
	case depth < 7:
		return 4
	default:
		return 2
	}
}

// NormalizedSizeLimit returns the maximum number of direct children a flat
// tree at the given bucket depth may hold.
func NormalizedSizeLimit(depth int) int {
	if depth < 3 {
		return 512
	}
	return 256
}

// NameHash returns the 64 bits FNV-1a hash of name. Every UTF-16 code unit
// contributes its high octet first, each octet sign extended.
func NameHash(name string) uint64 {
	b, _ := funnel.EncodeUTF16(nil, name)

	h := fnvOffset
	for i := 0; i+1 < len(b); i += 2 {
		h = (h ^ uint64(int64(int8(b[i+1])))) * fnvPrime
		h = (h ^ uint64(int64(int8(b[i])))) * fnvPrime
	}

	return h
}

func bucketOf(h uint64, depth int) int {
	n := int(byte(h >> (8 * (7 - depth))))
	return n * MaxBuckets(depth) / 256
}

// BucketOf returns the bucket index name falls into at the given depth.
// It panics if depth is not lower than MaxDepth.
func BucketOf(name string, depth int) int {
	if depth < 0 || depth >= MaxDepth {
		panic("object: bucket depth out of range")
	}

	return bucketOf(NameHash(name), depth)
}

// AllBuckets returns the bucket index of name at every depth.
func AllBuckets(name string) []int {
	h := NameHash(name)
	out := make([]int, MaxDepth)
	for i := range out {
		out[i] = bucketOf(h, i)
	}

	return out
}

// CompareNames orders names the way tree children are stored: by bucket at
// each depth, then by name.
func CompareNames(a, b string) int {
	if a == b {
		return 0
	}

	ha, hb := NameHash(a), NameHash(b)
	for i := 0; i < MaxDepth; i++ {
		ba, bb := bucketOf(ha, i), bucketOf(hb, i)
		if ba != bb {
			if ba < bb {
				return -1
			}
			return 1
		}
	}

	return compareUTF16(a, b)
}

// compareUTF16 orders a and b by their UTF-16 code units. It differs from a
// byte order only when a surrogate pair meets a unit above U+DFFF.
func compareUTF16(a, b string) int {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}

	return 0
}

// NodeNameComparator adapts CompareNames to the comparator used by the
// sorted containers of github.com/emirpasic/gods.
func NodeNameComparator(a, b interface{}) int {
	return CompareNames(a.(string), b.(string))
}
