//go:build darwin

package scan

import "golang.org/x/sys/unix"

// hasHiddenAttribute checks the UF_HIDDEN file flag (chflags hidden).
func hasHiddenAttribute(path string) bool {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return false
	}
	return st.Flags&unix.UF_HIDDEN != 0
}
