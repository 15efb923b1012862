//go:build !darwin && !windows

package scan

// Linux and other Unixes only know the dot convention.
func hasHiddenAttribute(string) bool {
	return false
}
