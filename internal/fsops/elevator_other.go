//go:build !linux && !darwin && !windows

package fsops

func DefaultCommand() string {
	return `sudo rm -rf -- "$TARGET"`
}
