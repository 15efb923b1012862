package scan

import (
	"io/fs"
	"strings"
)

// IsHidden reports whether the entry at path is hidden, either by the leading
// dot convention or by the platform's hidden attribute.
func IsHidden(path string, entry fs.DirEntry) bool {
	if strings.HasPrefix(entry.Name(), ".") {
		return true
	}
	return hasHiddenAttribute(path)
}
