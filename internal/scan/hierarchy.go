package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirectoryHierarchy is one empty directory and its empty descendants.
// Every node in the tree is an empty directory; Path is the identity key.
type DirectoryHierarchy struct {
	Path     string               `json:"path"`
	Depth    int                  `json:"depth"`
	Children []DirectoryHierarchy `json:"children,omitempty"`
}

// Build materializes the tree of empty descendants of path. A child is included
// when it is a directory and a member of emptySet. Children are sorted by path.
// Build only reads the filesystem; it never modifies it.
func Build(path string, emptySet map[string]struct{}) DirectoryHierarchy {
	h := DirectoryHierarchy{
		Path:  path,
		Depth: PathDepth(path),
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return h
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		child := filepath.Join(path, entry.Name())
		if _, ok := emptySet[child]; !ok {
			continue
		}
		h.Children = append(h.Children, Build(child, emptySet))
	}

	sort.Slice(h.Children, func(i, j int) bool {
		return h.Children[i].Path < h.Children[j].Path
	})
	return h
}

// PathDepth counts the components of path from the filesystem root.
// "/" is 0, "/tmp" is 1, "/tmp/a" is 2.
func PathDepth(path string) int {
	n := 0
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part != "" {
			n++
		}
	}
	return n
}

// Count returns the number of directories in the hierarchy, root included.
func (h DirectoryHierarchy) Count() int {
	n := 1
	for _, c := range h.Children {
		n += c.Count()
	}
	return n
}

// Walk calls fn for every node in pre-order.
func (h DirectoryHierarchy) Walk(fn func(DirectoryHierarchy)) {
	fn(h)
	for _, c := range h.Children {
		c.Walk(fn)
	}
}

// Find returns the node with the given path.
func (h DirectoryHierarchy) Find(path string) (DirectoryHierarchy, bool) {
	if h.Path == path {
		return h, true
	}
	if !IsAncestor(h.Path, path) {
		return DirectoryHierarchy{}, false
	}
	for _, c := range h.Children {
		if found, ok := c.Find(path); ok {
			return found, true
		}
	}
	return DirectoryHierarchy{}, false
}

// Clone returns a deep copy.
func (h DirectoryHierarchy) Clone() DirectoryHierarchy {
	out := DirectoryHierarchy{Path: h.Path, Depth: h.Depth}
	if h.Children != nil {
		out.Children = make([]DirectoryHierarchy, len(h.Children))
		for i, c := range h.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Prune removes the node with the given path (and its descendants) from the
// list, searching nested children too. Siblings are kept. The input is not modified.
func Prune(list []DirectoryHierarchy, path string) []DirectoryHierarchy {
	out := make([]DirectoryHierarchy, 0, len(list))
	for _, h := range list {
		if h.Path == path {
			continue
		}
		if IsAncestor(h.Path, path) {
			h = DirectoryHierarchy{Path: h.Path, Depth: h.Depth, Children: Prune(h.Children, path)}
			if len(h.Children) == 0 {
				h.Children = nil
			}
		}
		out = append(out, h)
	}
	return out
}

// IsAncestor reports whether ancestor is a strict path-ancestor of path:
// path starts with ancestor followed by a separator.
func IsAncestor(ancestor, path string) bool {
	prefix := ancestor
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return len(path) > len(prefix) && strings.HasPrefix(path, prefix)
}
