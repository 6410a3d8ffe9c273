// Package geogit is a version control library for large spatial datasets.
// Features are kept in content addressed Merkle trees that split into
// buckets as they grow, so two snapshots of millions of features can be
// compared by reading only the parts that differ.
//
// DiffTree streams the differences between two trees through the filters
// of the difftree package, DiffCount and DiffBounds summarize them. The
// object model lives in plumbing/object and the object stores in storage.
package geogit
