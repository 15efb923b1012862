package safety

import (
	"os"
	"path/filepath"
	"testing"
)

// TestProtectedPathBlocking verifies protected paths are blocked
func TestProtectedPathBlocking(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"root slash", "/", true},
		{"etc", "/etc", true},
		{"etc subdir", "/etc/ssh", true},
		{"bin", "/bin", true},
		{"bin file", "/bin/bash", true},
		{"usr", "/usr", true},
		{"usr local", "/usr/local", true},
		{"boot", "/boot", true},
		{"boot grub", "/boot/grub2", true},
		{"lib", "/lib", true},
		{"lib64", "/lib64", true},
		{"sbin", "/sbin", true},
		{"proc", "/proc/1", true},
		{"cleaner config", "/etc/emptyfolder-cleaner", true},
		{"cleaner config file", "/etc/emptyfolder-cleaner/config.yaml", true},
		{"cleaner db", "/var/lib/emptyfolder-cleaner", true},
		{"cleaner db dir", "/var/lib/emptyfolder-cleaner/empty", true},
		{"tmp allowed", "/tmp", false},
		{"tmp file", "/tmp/file.txt", false},
		{"var tmp", "/var/tmp", false},
		{"home", "/home", false},
		{"home user", "/home/user", false},
	}

	protected := defaultProtected(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsProtectedPath(tt.path, protected)
			if result != tt.expected {
				t.Errorf("IsProtectedPath(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestAllowedRootEnforcement verifies paths are restricted to allowed roots
func TestAllowedRootEnforcement(t *testing.T) {
	allowed := []string{"/tmp/allowed", "/var/cleanup"}

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"inside allowed tmp", "/tmp/allowed/file.txt", true},
		{"inside allowed var", "/var/cleanup/old.log", true},
		{"allowed root exact", "/tmp/allowed", true},
		{"outside allowed", "/tmp/notallowed/file.txt", false},
		{"parent of allowed", "/tmp", false},
		{"completely different", "/home/user/file.txt", false},
		{"root", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsWithinAllowedRoots(tt.path, allowed)
			if result != tt.expected {
				t.Errorf("IsWithinAllowedRoots(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestPathNormalization verifies paths are normalized correctly
func TestPathNormalization(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"absolute path", "/tmp/file.txt", false},
		{"relative path", "file.txt", false}, // Gets normalized to absolute
		{"path with dots", "/tmp/./file.txt", false},
		{"empty path", "", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizePath(tt.path)
			if tt.expectError {
				if err == nil {
					t.Errorf("NormalizePath(%s) expected error, got nil", tt.path)
				}
			} else {
				if err != nil {
					t.Errorf("NormalizePath(%s) unexpected error: %v", tt.path, err)
				}
				if !filepath.IsAbs(result) {
					t.Errorf("NormalizePath(%s) = %s, expected absolute path", tt.path, result)
				}
			}
		})
	}
}

// TestTraversalDetection verifies ".." segments are detected
func TestTraversalDetection(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"normal path", "/tmp/file.txt", false},
		{"dotdot parent", "/tmp/../etc/passwd", true},
		{"dotdot at start", "../etc/passwd", true},
		{"dotdot at end", "/tmp/..", true},
		{"dotdot middle", "/tmp/../var/file", true},
		{"single dot ok", "/tmp/./file", false},
		{"no traversal", "/tmp/normal/path", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectTraversal(tt.path)
			if result != tt.expected {
				t.Errorf("DetectTraversal(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestSymlinkEscapeDetection verifies symlinks escaping allowed roots are detected
func TestSymlinkEscapeDetection(t *testing.T) {
	// Create temporary test directory structure
	tmpDir := t.TempDir()
	allowedDir := filepath.Join(tmpDir, "allowed")
	outsideDir := filepath.Join(tmpDir, "outside")

	// Create directories
	if err := os.MkdirAll(allowedDir, 0755); err != nil {
		t.Fatalf("Failed to create allowed dir: %v", err)
	}
	if err := os.MkdirAll(outsideDir, 0755); err != nil {
		t.Fatalf("Failed to create outside dir: %v", err)
	}

	// Create a file outside allowed root
	outsideFile := filepath.Join(outsideDir, "target.txt")
	if err := os.WriteFile(outsideFile, []byte("outside"), 0644); err != nil {
		t.Fatalf("Failed to create outside file: %v", err)
	}

	// Create symlink inside allowed root pointing outside
	symlinkPath := filepath.Join(allowedDir, "link_to_outside")
	if err := os.Symlink(outsideFile, symlinkPath); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	// Create symlink inside allowed root pointing inside
	insideFile := filepath.Join(allowedDir, "inside.txt")
	if err := os.WriteFile(insideFile, []byte("inside"), 0644); err != nil {
		t.Fatalf("Failed to create inside file: %v", err)
	}
	safeSymlink := filepath.Join(allowedDir, "safe_link")
	if err := os.Symlink(insideFile, safeSymlink); err != nil {
		t.Fatalf("Failed to create safe symlink: %v", err)
	}

	allowed := resolveRoots([]string{allowedDir})

	tests := []struct {
		name         string
		path         string
		expectEscape bool
		expectError  bool
	}{
		{"symlink escapes", symlinkPath, true, false},
		{"symlink stays inside", safeSymlink, false, false},
		{"regular file inside", insideFile, false, false},
		{"nonexistent path", filepath.Join(allowedDir, "nonexistent"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			escaped, err := DetectSymlinkEscape(tt.path, allowed)
			if tt.expectError {
				if err == nil {
					t.Errorf("DetectSymlinkEscape(%s) expected error, got nil", tt.path)
				}
			} else {
				if err != nil {
					t.Errorf("DetectSymlinkEscape(%s) unexpected error: %v", tt.path, err)
				}
				if escaped != tt.expectEscape {
					t.Errorf("DetectSymlinkEscape(%s) = %v, expected %v", tt.path, escaped, tt.expectEscape)
				}
			}
		})
	}
}

// TestValidateDeleteTarget is the integration test for the full safety contract
func TestValidateDeleteTarget(t *testing.T) {
	tmpDir := t.TempDir()
	allowedDir := filepath.Join(tmpDir, "allowed")
	outsideDir := filepath.Join(tmpDir, "outside")

	// Create directories
	for _, d := range []string{
		filepath.Join(allowedDir, "empty", "nested"),
		filepath.Join(outsideDir, "victim"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
	}

	insideFile := filepath.Join(allowedDir, "notes.txt")
	if err := os.WriteFile(insideFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// Directory symlink inside the allowed root pointing outside
	escapingLink := filepath.Join(allowedDir, "escape_link")
	if err := os.Symlink(outsideDir, escapingLink); err != nil {
		t.Fatalf("Failed to create escaping symlink: %v", err)
	}

	validator := NewValidator([]string{allowedDir}, nil)

	tests := []struct {
		name        string
		path        string
		expectError error
	}{
		{"empty directory", filepath.Join(allowedDir, "empty"), nil},
		{"nested empty directory", filepath.Join(allowedDir, "empty", "nested"), nil},
		{"vanished directory", filepath.Join(allowedDir, "gone"), nil},
		{"regular file", insideFile, ErrNotDirectory},
		{"symlink itself", escapingLink, ErrNotDirectory},
		{"through escaping symlink", filepath.Join(escapingLink, "victim"), ErrSymlinkEscape},
		{"outside allowed", filepath.Join(outsideDir, "victim"), ErrOutsideAllowed},
		{"protected /etc", "/etc/ssh", ErrProtectedPath},
		{"protected /bin", "/bin", ErrProtectedPath},
		{"protected root", "/", ErrProtectedPath},
		{"traversal attempt", filepath.Join(allowedDir, "empty") + "/../empty", ErrTraversal},
		{"empty path", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateDeleteTarget(tt.path)
			if tt.expectError == nil {
				if err != nil {
					t.Errorf("ValidateDeleteTarget(%s) unexpected error: %v", tt.path, err)
				}
			} else {
				if err == nil {
					t.Errorf("ValidateDeleteTarget(%s) expected error %v, got nil", tt.path, tt.expectError)
				} else if err != tt.expectError {
					t.Errorf("ValidateDeleteTarget(%s) = %v, expected %v", tt.path, err, tt.expectError)
				}
			}
		})
	}
}

// TestProtectedExact verifies well-known parents are blocked but their contents are not
func TestProtectedExact(t *testing.T) {
	v := NewValidator([]string{"/"}, nil)
	v.ProtectedPaths = []string{"/proc"}

	if err := v.ValidateDeleteTarget("/home"); err != ErrProtectedPath {
		t.Errorf("Expected /home to be protected, got %v", err)
	}
	if err := v.ValidateDeleteTarget("/tmp"); err != ErrProtectedPath {
		t.Errorf("Expected /tmp to be protected, got %v", err)
	}
	if isExactMatch("/tmp/empty-dir", v.ProtectedExact) {
		t.Error("Contents of /tmp must stay eligible")
	}
}

// TestSymlinkedAllowedRoot verifies a root reached through a symlink is not treated as an escape
func TestSymlinkedAllowedRoot(t *testing.T) {
	tmpDir := t.TempDir()
	realRoot := filepath.Join(tmpDir, "real")
	if err := os.MkdirAll(filepath.Join(realRoot, "empty"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	linkRoot := filepath.Join(tmpDir, "link")
	if err := os.Symlink(realRoot, linkRoot); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	v := NewValidator([]string{linkRoot}, nil)
	if err := v.ValidateDeleteTarget(filepath.Join(linkRoot, "empty")); err != nil {
		t.Errorf("Expected target under symlinked root to be allowed, got %v", err)
	}
}

// TestHasPathPrefix verifies the path prefix checking logic
func TestHasPathPrefix(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{"exact match", "/tmp/allowed", "/tmp/allowed", true},
		{"subdirectory", "/tmp/allowed/sub", "/tmp/allowed", true},
		{"not a prefix", "/tmp/other", "/tmp/allowed", false},
		{"partial match", "/tmp/allowedother", "/tmp/allowed", false},
		{"root prefix", "/tmp", "/", true},
		{"slash prefix explicit", "/tmp/a/b", "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hasPathPrefix(tt.path, tt.prefix)
			if result != tt.expected {
				t.Errorf("hasPathPrefix(%s, %s) = %v, expected %v", tt.path, tt.prefix, result, tt.expected)
			}
		})
	}
}

// TestRootSlashGuardsOnlyItself verifies "/" in the protected list does not
// cover the whole filesystem, while "/" as an allowed root still does.
func TestRootSlashGuardsOnlyItself(t *testing.T) {
	protected := []string{"/"}
	if !IsProtectedPath("/", protected) {
		t.Error("Expected / to be protected")
	}
	if IsProtectedPath("/data/empty", protected) {
		t.Error("A protected / must not cover its descendants")
	}
	if !IsWithinAllowedRoots("/data/empty", []string{"/"}) {
		t.Error("An allowed / root must allow every absolute path")
	}

	root := t.TempDir()
	target := filepath.Join(root, "a")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	v := NewValidator([]string{root}, nil)
	if err := v.ValidateDeleteTarget(target); err != nil {
		t.Errorf("Expected %s to be deletable under the default protected list, got %v", target, err)
	}
}
