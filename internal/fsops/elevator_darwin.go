//go:build darwin

package fsops

// DefaultCommand shows the standard macOS administrator prompt. The path is
// read from the environment so AppleScript never parses it.
func DefaultCommand() string {
	return `osascript -e 'do shell script "rm -rf -- " & quoted form of (system attribute "TARGET") with administrator privileges'`
}
