package fsops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// TargetVar names the directory being deleted. Templates must reference it
// (`pkexec rm -rf -- "$TARGET"`); it is also exported to the helper's
// environment.
const TargetVar = "TARGET"

// DefaultElevationTimeout bounds one privileged delete, including the time a
// user needs to answer a credential prompt.
const DefaultElevationTimeout = 120 * time.Second

var (
	errEmptyCommand   = errors.New("elevation command is empty")
	errNoTarget       = errors.New("elevation command does not reference " + TargetVar)
	errRelativeTarget = errors.New("elevation target must be an absolute path")
)

// ElevationError carries the privileged command's output for diagnostics.
type ElevationError struct {
	Path   string
	Output string
	Err    error
}

func (e *ElevationError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("elevated delete of %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("elevated delete of %s: %v (output: %s)", e.Path, e.Err, e.Output)
}

func (e *ElevationError) Unwrap() error {
	return e.Err
}

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// CommandElevator runs an OS privilege helper to remove a directory tree.
// Template is split with POSIX shell rules after $TARGET is expanded, so a
// path with spaces or quotes stays one argument.
type CommandElevator struct {
	Template string
	Timeout  time.Duration
	Logger   Logger
}

// NewCommandElevator validates template and returns an elevator for it. An
// empty template selects DefaultCommand for the running OS.
func NewCommandElevator(template string, timeout time.Duration, logger Logger) (*CommandElevator, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultCommand()
	}
	if template == "" {
		return nil, errEmptyCommand
	}
	if !strings.Contains(template, TargetVar) {
		return nil, errNoTarget
	}
	if _, err := shell.Fields(template, func(string) string { return "" }); err != nil {
		return nil, fmt.Errorf("parse elevation command: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultElevationTimeout
	}
	return &CommandElevator{Template: template, Timeout: timeout, Logger: logger}, nil
}

// Argv expands the template for path.
func (c *CommandElevator) Argv(path string) ([]string, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%s: %w", path, errRelativeTarget)
	}
	argv, err := shell.Fields(c.Template, func(name string) string {
		if name == TargetVar {
			return path
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, fmt.Errorf("expand elevation command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errEmptyCommand
	}
	return argv, nil
}

// RemoveAll runs the expanded command and waits for it to exit. The caller
// verifies that path is gone afterwards.
func (c *CommandElevator) RemoveAll(ctx context.Context, path string) error {
	argv, err := c.Argv(path)
	if err != nil {
		return &ElevationError{Path: path, Err: err}
	}

	cwd, _ := os.Getwd()
	bin, err := interp.LookPathDir(cwd, expand.ListEnviron(os.Environ()...), argv[0])
	if err != nil {
		return &ElevationError{Path: path, Err: fmt.Errorf("resolve %q: %w", argv[0], err)}
	}

	if c.Logger != nil {
		c.Logger.Info("Requesting elevated delete", "path", path, "command", quoteArgv(argv))
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Env = append(os.Environ(), TargetVar+"="+path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s: %w", c.Timeout, err)
		}
		return &ElevationError{Path: path, Output: strings.TrimSpace(out.String()), Err: err}
	}
	return nil
}

// quoteArgv renders argv as a copy-pasteable shell line for logs.
func quoteArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		parts[i] = q
	}
	return strings.Join(parts, " ")
}
