//go:build windows

package fsops

// DefaultCommand starts an elevated PowerShell that removes the tree named by
// the TARGET environment variable.
func DefaultCommand() string {
	return `powershell -NoProfile -Command "Start-Process -Wait -Verb RunAs -FilePath powershell -ArgumentList '-NoProfile','-Command','Remove-Item -LiteralPath \$env:TARGET -Recurse -Force'"`
}
