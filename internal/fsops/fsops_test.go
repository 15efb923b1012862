package fsops

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"
)

func TestOSDeleterExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "victim")
	if err := os.MkdirAll(filepath.Join(dir, "inner"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	d := OSDeleter{}
	if ok, err := d.Exists(dir); err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true", ok, err)
	}
	if err := d.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if ok, err := d.Exists(dir); err != nil || ok {
		t.Errorf("Exists() after delete = %v, %v; want false", ok, err)
	}
}

func TestFakeDeleterForgetsDescendants(t *testing.T) {
	f := NewFakeDeleter("/r/a", "/r/a/b", "/r/ab")
	if err := f.RemoveAll("/r/a"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if ok, _ := f.Exists("/r/a/b"); ok {
		t.Error("Descendant should be gone")
	}
	if ok, _ := f.Exists("/r/ab"); !ok {
		t.Error("Sibling with shared prefix must survive")
	}

	f.SetError("/r/ab", fs.ErrPermission)
	if err := f.RemoveAll("/r/ab"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("Expected permission error, got %v", err)
	}
	if f.CallCount() != 2 {
		t.Errorf("Expected 2 calls, got %d", f.CallCount())
	}
}

func TestFakeElevatorSharesExistence(t *testing.T) {
	d := NewFakeDeleter("/r/a", "/r/b")
	e := &FakeElevator{Deleter: d, LeaveBehind: map[string]bool{"/r/b": true}}

	if err := e.RemoveAll(context.Background(), "/r/a"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if ok, _ := d.Exists("/r/a"); ok {
		t.Error("Elevated delete should remove the path")
	}
	if err := e.RemoveAll(context.Background(), "/r/b"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if ok, _ := d.Exists("/r/b"); !ok {
		t.Error("LeaveBehind path should still exist")
	}
}

func TestCommandElevatorArgv(t *testing.T) {
	c, err := NewCommandElevator(`pkexec rm -rf -- "$TARGET"`, time.Second, nil)
	if err != nil {
		t.Fatalf("NewCommandElevator failed: %v", err)
	}

	target := filepath.Join(string(filepath.Separator)+"srv", "it's a dir", "sub")
	got, err := c.Argv(target)
	if err != nil {
		t.Fatalf("Argv failed: %v", err)
	}
	want := []string{"pkexec", "rm", "-rf", "--", target}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Argv() = %q, want %q", got, want)
	}

	if _, err := c.Argv("relative/path"); !errors.Is(err, errRelativeTarget) {
		t.Errorf("Expected errRelativeTarget, got %v", err)
	}
}

func TestNewCommandElevatorValidation(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     error
	}{
		{"no target reference", "rm -rf /tmp/x", errNoTarget},
		{"unterminated quote", `rm -rf "$TARGET`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommandElevator(tt.template, 0, nil)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	c, err := NewCommandElevator("", 0, nil)
	if err != nil {
		t.Fatalf("Default command rejected: %v", err)
	}
	if c.Timeout != DefaultElevationTimeout {
		t.Errorf("Expected default timeout, got %v", c.Timeout)
	}
}

func TestCommandElevatorRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell commands")
	}
	dir := filepath.Join(t.TempDir(), "with space")
	if err := os.MkdirAll(filepath.Join(dir, "a", "b"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	c, err := NewCommandElevator(`rm -rf -- "$TARGET"`, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewCommandElevator failed: %v", err)
	}
	if err := c.RemoveAll(context.Background(), dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed, stat err = %v", dir, err)
	}
}

func TestCommandElevatorReportsFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell commands")
	}
	c, err := NewCommandElevator(`sh -c 'echo denied >&2; exit 3' "$TARGET"`, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewCommandElevator failed: %v", err)
	}

	err = c.RemoveAll(context.Background(), t.TempDir())
	var elevErr *ElevationError
	if !errors.As(err, &elevErr) {
		t.Fatalf("Expected ElevationError, got %v", err)
	}
	if elevErr.Output != "denied" {
		t.Errorf("Expected captured output 'denied', got %q", elevErr.Output)
	}
}

func TestQuoteArgv(t *testing.T) {
	got := quoteArgv([]string{"rm", "-rf", "/tmp/a b"})
	if got != `rm -rf '/tmp/a b'` {
		t.Errorf("quoteArgv() = %s", got)
	}
}
