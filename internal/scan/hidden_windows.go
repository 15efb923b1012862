//go:build windows

package scan

import "golang.org/x/sys/windows"

// hasHiddenAttribute checks FILE_ATTRIBUTE_HIDDEN (attrib +h).
func hasHiddenAttribute(path string) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_HIDDEN != 0
}
