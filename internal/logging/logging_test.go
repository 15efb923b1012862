package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emptyfolder-cleaner/internal/config"
)

func TestFileOutputIsJSON(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "cleaner.log")
	cfg := config.Default()
	cfg.Logging.File = logFile
	cfg.Logging.Level = "debug"

	logger, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	logger.Named("scan").With("root", "/tmp/a").Info("Scan complete", "empty_roots", 2)
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	line := strings.TrimSpace(string(data))
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Log line is not JSON: %q: %v", line, err)
	}
	if entry["msg"] != "Scan complete" {
		t.Errorf("Unexpected msg: %v", entry["msg"])
	}
	if entry["logger"] != "scan" {
		t.Errorf("Unexpected logger name: %v", entry["logger"])
	}
	if entry["root"] != "/tmp/a" {
		t.Errorf("Missing With() field: %v", entry)
	}
	if entry["empty_roots"] != float64(2) {
		t.Errorf("Missing key/value field: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "cleaner.log")
	cfg := config.Default()
	cfg.Logging.File = logFile
	cfg.Logging.Level = "warn"

	logger, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("warn entry should be written")
	}
}

func TestInvalidLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "chatty"
	if _, err := NewWithConfig(cfg); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop()
	l.Debug("a")
	l.Info("b", "k", "v")
	l.Warn("c")
	l.Error("d")
	_ = l.With("x", 1).Named("n").Sync()
}
