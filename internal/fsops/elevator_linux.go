//go:build linux

package fsops

// DefaultCommand asks polkit for administrator rights.
func DefaultCommand() string {
	return `pkexec rm -rf -- "$TARGET"`
}
