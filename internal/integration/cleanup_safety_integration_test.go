package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emptyfolder-cleaner/internal/cleanup"
	"emptyfolder-cleaner/internal/logging"
	"emptyfolder-cleaner/internal/metrics"
	"emptyfolder-cleaner/internal/safety"
	"emptyfolder-cleaner/internal/scan"
)

func init() {
	// Initialize metrics once for all integration tests
	metrics.Init()
}

// chmodElevator stands in for a privilege helper: it restores write access
// on the refused tree and removes it.
type chmodElevator struct {
	calls int
}

func (e *chmodElevator) RemoveAll(ctx context.Context, path string) error {
	e.calls++
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.Chmod(p, 0755)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// layout builds:
//
//	root/
//	  plain/a/b         empty hierarchy
//	  locked/inner      empty, but locked is read-only
//	  keep/file.txt     content
//	  linked/link ->    symlink to an empty directory outside root
func layout(t *testing.T) (root, outside string) {
	t.Helper()
	root = t.TempDir()
	outside = t.TempDir()

	for _, d := range []string{"plain/a/b", "locked/inner", "keep", "linked"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "keep", "file.txt"), []byte("MUST KEEP"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "linked", "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })
	return root, outside
}

func scanRoot(t *testing.T, root string) []scan.DirectoryHierarchy {
	t.Helper()
	hs, err := scan.NewScanner(scan.DefaultOptions(), nil).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return hs
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// TestCleanupSafetyIntegration runs scan and delete against a real filesystem.
func TestCleanupSafetyIntegration(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	t.Run("ScanFindsOnlyEmptyHierarchies", func(t *testing.T) {
		root, _ := layout(t)
		hs := scanRoot(t, root)

		var got []string
		for _, h := range hs {
			got = append(got, h.Path)
		}
		want := []string{filepath.Join(root, "locked"), filepath.Join(root, "plain")}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("DryRun_NoFilesystemChanges", func(t *testing.T) {
		root, _ := layout(t)
		hs := scanRoot(t, root)

		cleaner := cleanup.NewCleaner(logging.Nop(), safety.NewValidator([]string{root}, nil), true, nil)
		report := cleaner.DeleteAll(context.Background(), hs, true)

		if report.Deleted != len(hs) || report.Failed != 0 {
			t.Errorf("Unexpected dry-run report: %+v", report)
		}
		for _, h := range hs {
			if !exists(h.Path) {
				t.Errorf("DRY-RUN VIOLATION: %s was deleted", h.Path)
			}
		}
	})

	t.Run("PermissionDenied_WithoutElevation", func(t *testing.T) {
		root, _ := layout(t)
		hs := scanRoot(t, root)

		elevator := &chmodElevator{}
		cleaner := cleanup.NewCleaner(logging.Nop(), safety.NewValidator([]string{root}, nil), false, nil)
		cleaner.SetElevator(elevator)
		report := cleaner.DeleteAll(context.Background(), hs, false)

		if report.Deleted != 1 || report.Failed != 1 || report.PermissionDenied != 1 {
			t.Errorf("Unexpected report: %+v", report)
		}
		if !strings.Contains(report.Summary(), "insufficient permissions") {
			t.Errorf("Unexpected summary: %q", report.Summary())
		}
		if elevator.calls != 0 {
			t.Error("Elevation must not be attempted unless asked for")
		}
		if exists(filepath.Join(root, "plain")) {
			t.Error("plain should have been deleted")
		}
		if !exists(filepath.Join(root, "locked", "inner")) {
			t.Error("locked/inner should have survived the refused delete")
		}
	})

	t.Run("PermissionDenied_RetriedWithElevation", func(t *testing.T) {
		root, _ := layout(t)
		hs := scanRoot(t, root)

		elevator := &chmodElevator{}
		cleaner := cleanup.NewCleaner(logging.Nop(), safety.NewValidator([]string{root}, nil), false, nil)
		cleaner.SetElevator(elevator)
		report := cleaner.DeleteAll(context.Background(), hs, true)

		if report.Deleted != 2 || report.Failed != 0 || report.Elevated != 1 {
			t.Errorf("Unexpected report: %+v", report)
		}
		if elevator.calls != 1 {
			t.Errorf("Expected one elevated delete, got %d", elevator.calls)
		}
		if exists(filepath.Join(root, "locked")) {
			t.Error("locked should have been removed by the elevated pass")
		}
	})

	t.Run("SymlinkedDirectory_IsContent", func(t *testing.T) {
		root, outside := layout(t)
		hs := scanRoot(t, root)

		cleaner := cleanup.NewCleaner(logging.Nop(), safety.NewValidator([]string{root}, nil), false, nil)
		cleaner.SetElevator(&chmodElevator{})
		cleaner.DeleteAll(context.Background(), hs, true)

		if !exists(filepath.Join(root, "linked", "link")) || !exists(outside) {
			t.Error("SAFETY VIOLATION: symlink or its target was deleted")
		}
		if !exists(filepath.Join(root, "keep", "file.txt")) {
			t.Error("SAFETY VIOLATION: file content was deleted")
		}
	})

	t.Run("OutsideAllowedRoot_Blocked", func(t *testing.T) {
		root, outside := layout(t)

		cleaner := cleanup.NewCleaner(logging.Nop(), safety.NewValidator([]string{root}, nil), false, nil)
		err := cleaner.Delete(context.Background(), scan.Build(outside, map[string]struct{}{outside: {}}), false)
		if !errors.Is(err, cleanup.ErrUnsafePath) {
			t.Errorf("Expected ErrUnsafePath, got %v", err)
		}
		if !exists(outside) {
			t.Error("CRITICAL SAFETY VIOLATION: directory outside allowed root was deleted")
		}
	})

	// Verify system paths are never deleted
	t.Run("ProtectedPaths_Blocked", func(t *testing.T) {
		for _, path := range []string{"/etc", "/bin", "/usr/lib", "/boot"} {
			validator := safety.NewValidator([]string{"/"}, nil)
			if err := validator.ValidateDeleteTarget(path); !errors.Is(err, safety.ErrProtectedPath) {
				t.Errorf("SAFETY VIOLATION: Protected path %s not blocked (err=%v)", path, err)
			}
		}
	})
}
