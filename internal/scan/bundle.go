package scan

import (
	"path/filepath"
	"strings"
)

// IsBundle reports whether a directory name carries one of the given package
// extensions (".app", ".framework", ...). Bundles are opaque: the walk never
// descends into them and they always count as content.
func IsBundle(name string, exts []string) bool {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
