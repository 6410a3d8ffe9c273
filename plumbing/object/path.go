package object

import "strings"

// PathSeparator separates the names of a node path.
const PathSeparator = "/"

// ParentPath returns the path of the parent of path, or "" for a top level
// path.
func ParentPath(path string) string {
	i := strings.LastIndex(path, PathSeparator)
	if i < 0 {
		return ""
	}

	return path[:i]
}

// NodeFromPath returns the last name of path.
func NodeFromPath(path string) string {
	i := strings.LastIndex(path, PathSeparator)
	return path[i+1:]
}

// AppendChild joins parent and child into a path.
func AppendChild(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}

	return parent + PathSeparator + child
}

// SplitPath returns the names of path, which is empty for the root path.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}

	return strings.Split(path, PathSeparator)
}

// Depth returns the number of names in path.
func Depth(path string) int {
	return len(SplitPath(path))
}

// IsChild reports whether path is a descendant of parent at any depth.
// Every non-root path is a child of the root path "".
func IsChild(parent, path string) bool {
	if parent == "" {
		return path != ""
	}

	return len(path) > len(parent)+1 &&
		strings.HasPrefix(path, parent) &&
		path[len(parent):len(parent)+1] == PathSeparator
}

// IsDirectChild reports whether path is an immediate child of parent.
func IsDirectChild(parent, path string) bool {
	return IsChild(parent, path) && ParentPath(path) == parent
}

// AllPathsTo returns every ancestor path of path, from the top level down,
// and path itself.
func AllPathsTo(path string) []string {
	names := SplitPath(path)
	out := make([]string, 0, len(names))

	var current string
	for _, name := range names {
		current = AppendChild(current, name)
		out = append(out, current)
	}

	return out
}
